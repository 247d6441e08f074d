package modes

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"strconv"
	"strings"

	cryptobin "github.com/deatil/go-cryptobin/cipher"
)

var (
	ErrUnknownMode = errors.New("unknown cipher mode")
	ErrInvalidIV   = errors.New("invalid IV")
)

// Mode is a running mode of operation bound to one key and one message.
// CryptBlocks consumes whole segments; a streaming mode also accepts a short
// trailing segment, after which the mode must not be used again.
type Mode interface {
	Name() string
	SegmentSize() int
	Streaming() bool
	CryptBlocks(dst, src []byte)
}

// blockMode adapts a cipher.BlockMode (ECB, CBC)
type blockMode struct {
	name string
	bm   cipher.BlockMode
}

func (b *blockMode) Name() string     { return b.name }
func (b *blockMode) SegmentSize() int { return b.bm.BlockSize() }
func (b *blockMode) Streaming() bool  { return false }

func (b *blockMode) CryptBlocks(dst, src []byte) {
	if len(src) == 0 {
		return
	}
	b.bm.CryptBlocks(dst, src)
}

// streamMode adapts a cipher.Stream (CFB, OFB). segment is the feedback
// width the stream consumes per block encryption.
type streamMode struct {
	name    string
	segment int
	stream  cipher.Stream
}

func (s *streamMode) Name() string     { return s.name }
func (s *streamMode) SegmentSize() int { return s.segment }
func (s *streamMode) Streaming() bool  { return true }

func (s *streamMode) CryptBlocks(dst, src []byte) {
	s.stream.XORKeyStream(dst[:len(src)], src)
}

type cfbConstructor func(block cipher.Block, iv []byte, decrypt bool) cipher.Stream

// Segmented CFB widths, in bits. The full-block width comes from crypto/cipher.
var cfbSegments = map[int]cfbConstructor{
	8:  cryptobin.NewCFB8,
	16: cryptobin.NewCFB16,
	32: cryptobin.NewCFB32,
	64: cryptobin.NewCFB64,
}

// RequiresIV reports whether the named mode chains from an initialization vector
func RequiresIV(modeName string) bool {
	return strings.ToUpper(modeName) != "ECB"
}

// New returns a Mode for the given mode name ("ECB", "CBC", "CFB", "CFB8",
// "OFB", ...). A nil iv starts chaining modes from an all-zero register.
func New(modeName string, block cipher.Block, iv []byte, encrypting bool) (Mode, error) {
	blockSize := block.BlockSize()
	name := strings.ToUpper(modeName)

	if name == "ECB" {
		if encrypting {
			return &blockMode{name: name, bm: cryptobin.NewECBEncrypter(block)}, nil
		}
		return &blockMode{name: name, bm: cryptobin.NewECBDecrypter(block)}, nil
	}

	register := make([]byte, blockSize)
	if iv != nil {
		if len(iv) != blockSize {
			return nil, fmt.Errorf("%w: IV length must be %d, got %d", ErrInvalidIV, blockSize, len(iv))
		}
		copy(register, iv)
	}

	switch {
	case name == "CBC":
		if encrypting {
			return &blockMode{name: name, bm: cipher.NewCBCEncrypter(block, register)}, nil
		}
		return &blockMode{name: name, bm: cipher.NewCBCDecrypter(block, register)}, nil
	case name == "OFB":
		return &streamMode{name: name, segment: blockSize, stream: cipher.NewOFB(block, register)}, nil
	case strings.HasPrefix(name, "CFB"):
		return newCFB(name, block, register, encrypting)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, modeName)
	}
}

// newCFB parses the feedback width of "CFB<bits>"; bare "CFB" is a full block
func newCFB(name string, block cipher.Block, iv []byte, encrypting bool) (Mode, error) {
	fullBits := block.BlockSize() * 8

	bits := fullBits
	if s := strings.TrimPrefix(name, "CFB"); s != "" {
		var err error
		if bits, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
		}
	}

	mode := &streamMode{name: "CFB" + strconv.Itoa(bits), segment: bits / 8}
	switch newStream, ok := cfbSegments[bits]; {
	case bits == fullBits && encrypting:
		mode.stream = cipher.NewCFBEncrypter(block, iv)
	case bits == fullBits:
		mode.stream = cipher.NewCFBDecrypter(block, iv)
	case ok && bits < fullBits:
		mode.stream = newStream(block, iv, !encrypting)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return mode, nil
}
