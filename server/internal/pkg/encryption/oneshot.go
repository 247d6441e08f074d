package encryption

import "fmt"

// Result is the outcome of a Try* one-shot operation. BytesWritten is -1
// when Err is set, and the destination must then be treated as garbage.
type Result struct {
	BytesWritten int
	Err          error
}

// OK reports success
func (r Result) OK() bool {
	return r.Err == nil
}

func failed(err error) Result {
	return Result{BytesWritten: -1, Err: err}
}

// TryEncryptCbc encrypts plaintext with the configured key in CBC mode into destination
func (s Seed) TryEncryptCbc(plaintext, iv, destination []byte, padding PaddingMode) Result {
	return s.tryTransform(s.request(s.key, iv, true, ModeCBC, padding, s.feedbackSize), plaintext, destination)
}

// TryDecryptCbc decrypts ciphertext with the configured key in CBC mode into destination
func (s Seed) TryDecryptCbc(ciphertext, iv, destination []byte, padding PaddingMode) Result {
	return s.tryTransform(s.request(s.key, iv, false, ModeCBC, padding, s.feedbackSize), ciphertext, destination)
}

// TryEncryptCfb encrypts plaintext in CFB mode with the given feedback size in bits
func (s Seed) TryEncryptCfb(plaintext, iv, destination []byte, padding PaddingMode, feedbackSizeInBits int) Result {
	return s.tryTransform(s.request(s.key, iv, true, ModeCFB, padding, feedbackSizeInBits), plaintext, destination)
}

// TryDecryptCfb decrypts ciphertext in CFB mode with the given feedback size in bits
func (s Seed) TryDecryptCfb(ciphertext, iv, destination []byte, padding PaddingMode, feedbackSizeInBits int) Result {
	return s.tryTransform(s.request(s.key, iv, false, ModeCFB, padding, feedbackSizeInBits), ciphertext, destination)
}

// TryEncryptEcb encrypts plaintext in ECB mode
func (s Seed) TryEncryptEcb(plaintext, destination []byte, padding PaddingMode) Result {
	return s.tryTransform(s.request(s.key, nil, true, ModeECB, padding, s.feedbackSize), plaintext, destination)
}

// TryDecryptEcb decrypts ciphertext in ECB mode
func (s Seed) TryDecryptEcb(ciphertext, destination []byte, padding PaddingMode) Result {
	return s.tryTransform(s.request(s.key, nil, false, ModeECB, padding, s.feedbackSize), ciphertext, destination)
}

// TryEncryptOfb encrypts plaintext in OFB mode
func (s Seed) TryEncryptOfb(plaintext, iv, destination []byte, padding PaddingMode) Result {
	return s.tryTransform(s.request(s.key, iv, true, ModeOFB, padding, s.feedbackSize), plaintext, destination)
}

// TryDecryptOfb decrypts ciphertext in OFB mode
func (s Seed) TryDecryptOfb(ciphertext, iv, destination []byte, padding PaddingMode) Result {
	return s.tryTransform(s.request(s.key, iv, false, ModeOFB, padding, s.feedbackSize), ciphertext, destination)
}

func (s Seed) EncryptCbc(plaintext, iv []byte, padding PaddingMode) ([]byte, error) {
	return s.Run(s.request(s.key, iv, true, ModeCBC, padding, s.feedbackSize), plaintext)
}

func (s Seed) DecryptCbc(ciphertext, iv []byte, padding PaddingMode) ([]byte, error) {
	return s.Run(s.request(s.key, iv, false, ModeCBC, padding, s.feedbackSize), ciphertext)
}

func (s Seed) EncryptCfb(plaintext, iv []byte, padding PaddingMode, feedbackSizeInBits int) ([]byte, error) {
	return s.Run(s.request(s.key, iv, true, ModeCFB, padding, feedbackSizeInBits), plaintext)
}

func (s Seed) DecryptCfb(ciphertext, iv []byte, padding PaddingMode, feedbackSizeInBits int) ([]byte, error) {
	return s.Run(s.request(s.key, iv, false, ModeCFB, padding, feedbackSizeInBits), ciphertext)
}

func (s Seed) EncryptEcb(plaintext []byte, padding PaddingMode) ([]byte, error) {
	return s.Run(s.request(s.key, nil, true, ModeECB, padding, s.feedbackSize), plaintext)
}

func (s Seed) DecryptEcb(ciphertext []byte, padding PaddingMode) ([]byte, error) {
	return s.Run(s.request(s.key, nil, false, ModeECB, padding, s.feedbackSize), ciphertext)
}

func (s Seed) EncryptOfb(plaintext, iv []byte, padding PaddingMode) ([]byte, error) {
	return s.Run(s.request(s.key, iv, true, ModeOFB, padding, s.feedbackSize), plaintext)
}

func (s Seed) DecryptOfb(ciphertext, iv []byte, padding PaddingMode) ([]byte, error) {
	return s.Run(s.request(s.key, iv, false, ModeOFB, padding, s.feedbackSize), ciphertext)
}

// Run builds a transform for req and pushes input through a single final call
func (s Seed) Run(req TransformRequest, input []byte) ([]byte, error) {
	t, err := s.NewTransform(req)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	return t.TransformFinalBlock(input)
}

// TryRun is Run into a caller-sized destination. Nothing is copied into
// destination unless the whole operation, padding check included, succeeded.
func (s Seed) TryRun(req TransformRequest, input, destination []byte) Result {
	return s.tryTransform(req, input, destination)
}

func (s Seed) tryTransform(req TransformRequest, input, destination []byte) Result {
	out, err := s.Run(req, input)
	if err != nil {
		return failed(err)
	}
	defer wipe(out)

	if len(destination) < len(out) {
		return failed(fmt.Errorf("%w: need %d bytes, have %d", ErrDestinationTooShort, len(out), len(destination)))
	}
	return Result{BytesWritten: copy(destination, out)}
}
