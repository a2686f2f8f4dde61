package crypto

import (
	"bytes"
	"crypto/aes"
	"errors"
)

// The wire protocol uses AES in ECB mode with PKCS7 padding and no IV. Keys
// are the raw bytes of the key string, so only 16, 24 or 32 character keys
// are usable.

var errPadding = errors.New("invalid padding")

func ecbEncrypt(plain, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain = pkcs7Pad(plain, block.BlockSize())
	out := make([]byte, len(plain))
	for i := 0; i < len(plain); i += block.BlockSize() {
		block.Encrypt(out[i:], plain[i:])
	}
	return out, nil
}

func ecbDecrypt(cipher, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(cipher) == 0 || len(cipher)%block.BlockSize() != 0 {
		return nil, errors.New("ciphertext is not block aligned")
	}
	out := make([]byte, len(cipher))
	for i := 0; i < len(cipher); i += block.BlockSize() {
		block.Decrypt(out[i:], cipher[i:])
	}
	return pkcs7Unpad(out, block.BlockSize())
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errPadding
		}
	}
	return data[:len(data)-n], nil
}
