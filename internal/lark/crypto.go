package lark

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedPayload 回调载荷无法解密或解析
var ErrMalformedPayload = errors.New("malformed payload")

// Cipher 飞书事件加解密器
// 密钥为 encrypt_key 的 SHA-256 摘要，密文首个分组为 IV
type Cipher struct {
	key []byte
}

// NewCipher 根据 encrypt_key 创建加解密器
func NewCipher(encryptKey string) *Cipher {
	sum := sha256.Sum256([]byte(encryptKey))
	return &Cipher{key: sum[:]}
}

// Decrypt 解密 base64 编码的 AES-CBC 密文，返回明文 JSON
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedPayload, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrMalformedPayload, len(raw))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	return unpad(plain)
}

// Encrypt 使用随机 IV 加密明文，输出格式与飞书一致
func (c *Cipher) Encrypt(plain []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	padded := pad(plain)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("生成 IV 失败: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptEvent 解密并解析为事件结构
func (c *Cipher) DecryptEvent(encoded string) (*EventContext, error) {
	plain, err := c.Decrypt(encoded)
	if err != nil {
		return nil, err
	}
	return ParseEvent(plain)
}

// unpad 末字节即填充长度
func unpad(buf []byte) ([]byte, error) {
	n := int(buf[len(buf)-1])
	if n == 0 || n > aes.BlockSize || n > len(buf) {
		return nil, fmt.Errorf("%w: invalid padding %d", ErrMalformedPayload, n)
	}
	return buf[:len(buf)-n], nil
}

func pad(buf []byte) []byte {
	n := aes.BlockSize - len(buf)%aes.BlockSize
	return append(append([]byte{}, buf...), bytes.Repeat([]byte{byte(n)}, n)...)
}
