// Package adaptive provides authenticated encryption that picks its
// algorithm from the hardware.
//
// AES-256-GCM is used where the CPU accelerates AES, ChaCha20-Poly1305
// elsewhere. Both take the same 32-byte key, so data sealed by one machine
// opens on another as long as the reader is told which algorithm was used.
//
//	key, _ := adaptive.GenerateKey()
//	c, _ := adaptive.New(key)
//	sealed, _ := c.Encrypt(plaintext, aad)
//	plaintext, _ = c.Decrypt(sealed, aad)
package adaptive
