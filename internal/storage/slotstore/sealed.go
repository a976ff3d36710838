package slotstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/pkg/crypto/adaptive"
)

// sealMagic starts every sealed slot. The byte after it names the cipher.
var sealMagic = []byte("WSSEAL")

var cipherIDs = map[adaptive.CipherType]byte{
	adaptive.CipherAESGCM:   1,
	adaptive.CipherChaCha20: 2,
}

// SealedStore encrypts slots before handing them to another Store. The
// slot name is bound to the ciphertext, so a sealed slot copied under
// another name fails to open.
type SealedStore struct {
	Store
	writer  adaptive.Cipher
	readers map[byte]adaptive.Cipher
}

var _ Store = (*SealedStore)(nil)

// NewSealedStore wraps inner. New slots are sealed with cipherType; an
// empty type picks the fastest cipher for this machine. Slots sealed with
// either cipher can be opened.
func NewSealedStore(inner Store, key []byte, cipherType adaptive.CipherType) (*SealedStore, error) {
	writer, err := adaptive.NewWithType(key, cipherType)
	if err != nil {
		return nil, fmt.Errorf("slotstore: %w", err)
	}
	readers := make(map[byte]adaptive.Cipher, len(cipherIDs))
	for typ, id := range cipherIDs {
		c, err := adaptive.NewWithType(key, typ)
		if err != nil {
			return nil, fmt.Errorf("slotstore: %w", err)
		}
		readers[id] = c
	}
	return &SealedStore{Store: inner, writer: writer, readers: readers}, nil
}

// Unwrap returns the underlying store.
func (s *SealedStore) Unwrap() Store { return s.Store }

func sealAAD(name string) []byte {
	return []byte("worldsave/slot/" + name)
}

func (s *SealedStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	ct, err := s.writer.Encrypt(data, sealAAD(name))
	if err != nil {
		return fmt.Errorf("slotstore: seal %s: %w", name, err)
	}
	sealed := make([]byte, 0, len(sealMagic)+1+len(ct))
	sealed = append(sealed, sealMagic...)
	sealed = append(sealed, cipherIDs[s.writer.Type()])
	sealed = append(sealed, ct...)
	return s.Store.Write(ctx, name, sealed)
}

func (s *SealedStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.Store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("slotstore: read %s: %w", name, err)
	}

	if len(raw) <= len(sealMagic) || !bytes.HasPrefix(raw, sealMagic) {
		return nil, domain.ErrSlotCorrupted.WithDetails("%s: slot is not sealed", name)
	}
	c, ok := s.readers[raw[len(sealMagic)]]
	if !ok {
		return nil, domain.ErrSlotCorrupted.WithDetails("%s: unknown cipher %d", name, raw[len(sealMagic)])
	}
	data, err := c.Decrypt(raw[len(sealMagic)+1:], sealAAD(name))
	if err != nil {
		return nil, domain.ErrSlotCorrupted.WithDetails("%s", name).Wrap(err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
