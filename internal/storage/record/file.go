package record

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Magic bytes identify slot files.
var magicBytes = []byte("WSAVSLOT")

const (
	checksumSize = 32
	// maxBlockSize guards against allocating absurd lengths read from a
	// corrupt header.
	maxBlockSize = 1 << 30
)

var (
	ErrInvalidMagic     = errors.New("record: invalid magic bytes")
	ErrChecksumMismatch = errors.New("record: checksum mismatch")
	ErrTruncated        = errors.New("record: truncated slot file")
)

// Marshal encodes a complete slot file.
func Marshal(f *SlotFile) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Write(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes f to w and returns the SHA-256 checksum written as trailer.
func Write(w io.Writer, f *SlotFile) ([]byte, error) {
	if f == nil || f.Info == nil {
		return nil, fmt.Errorf("record: slot file has no info")
	}

	hash := sha256.New()
	mw := io.MultiWriter(w, hash)

	if _, err := mw.Write(magicBytes); err != nil {
		return nil, fmt.Errorf("record: write magic: %w", err)
	}

	info := EncodeInfo(f.Info)
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(info)))
	binary.BigEndian.PutUint32(hdr[4:], crc32.ChecksumIEEE(info))
	if _, err := mw.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("record: write info header: %w", err)
	}
	if _, err := mw.Write(info); err != nil {
		return nil, fmt.Errorf("record: write info: %w", err)
	}

	data := EncodeData(&f.Data)
	var dataLen [4]byte
	binary.BigEndian.PutUint32(dataLen[:], uint32(len(data)))
	if _, err := mw.Write(dataLen[:]); err != nil {
		return nil, fmt.Errorf("record: write data length: %w", err)
	}
	if _, err := mw.Write(data); err != nil {
		return nil, fmt.Errorf("record: write data: %w", err)
	}

	// Trailer is not part of the hash.
	sum := hash.Sum(nil)
	if _, err := w.Write(sum); err != nil {
		return nil, fmt.Errorf("record: write checksum: %w", err)
	}
	return sum, nil
}

// ReadHeader reads and validates the info block of a slot file without
// reading the body. The returned bytes are decoded with DecodeInfo.
func ReadHeader(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, truncated(err)
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, ErrInvalidMagic
	}

	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, truncated(err)
	}
	infoLen := binary.BigEndian.Uint32(hdr[:4])
	wantCRC := binary.BigEndian.Uint32(hdr[4:])
	if infoLen == 0 || infoLen > maxBlockSize {
		return nil, fmt.Errorf("record: bad info length %d: %w", infoLen, ErrTruncated)
	}

	info := make([]byte, infoLen)
	if _, err := io.ReadFull(br, info); err != nil {
		return nil, truncated(err)
	}
	if crc32.ChecksumIEEE(info) != wantCRC {
		return nil, ErrChecksumMismatch
	}
	return info, nil
}

// ReadInfo reads and decodes only the info header of a slot file.
func ReadInfo(r io.Reader) (*SlotInfo, error) {
	raw, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	return DecodeInfo(raw)
}

// Unmarshal verifies and decodes a complete slot file.
func Unmarshal(data []byte) (*SlotFile, error) {
	if len(data) < len(magicBytes)+checksumSize {
		return nil, ErrTruncated
	}
	body := data[:len(data)-checksumSize]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], data[len(body):]) {
		return nil, ErrChecksumMismatch
	}

	br := bytes.NewReader(body)
	rawInfo, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	// ReadHeader buffers ahead; recompute the body offset from the header.
	offset := len(magicBytes) + 8 + len(rawInfo)
	if len(body) < offset+4 {
		return nil, ErrTruncated
	}
	dataLen := int(binary.BigEndian.Uint32(body[offset : offset+4]))
	offset += 4
	if len(body)-offset != dataLen {
		return nil, ErrTruncated
	}

	info, err := DecodeInfo(rawInfo)
	if err != nil {
		return nil, fmt.Errorf("record: decode info: %w", err)
	}
	d, err := DecodeData(body[offset:])
	if err != nil {
		return nil, fmt.Errorf("record: decode data: %w", err)
	}
	return &SlotFile{Info: info, Data: *d}, nil
}

// ReadFile reads a complete slot file from r.
func ReadFile(r io.Reader) (*SlotFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
