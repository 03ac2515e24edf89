package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"larkticket/internal/config"
	"larkticket/internal/lark"
)

func newDecryptCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <encrypt>",
		Short: "用配置的 encrypt_key 解密飞书回调",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cipher, err := loadCipher(opts)
			if err != nil {
				return err
			}
			plain, err := cipher.Decrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(plain))
			return nil
		},
	}
}

func newEncryptCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <json>",
		Short: "用配置的 encrypt_key 加密 JSON，便于本地模拟回调",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[0])) {
				return errors.New("参数不是合法的 JSON")
			}
			cipher, err := loadCipher(opts)
			if err != nil {
				return err
			}
			encoded, err := cipher.Encrypt([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
}

func loadCipher(opts *rootOptions) (*lark.Cipher, error) {
	loadEnvFile()
	cfg, err := config.Load(opts.env, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return lark.NewCipher(cfg.Lark.EncryptKey), nil
}
