package main

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/fairdeal/network"
)

func newCertCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Generate a self signed certificate for the listen address",
		RunE: func(cmd *cobra.Command, args []string) error {
			certFile, keyFile, err := writeCert(a.cfg.Listen, dir)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Wrote %s and %s, share the certificate with the other players", certFile, keyFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "out", ".", "output directory")
	return cmd
}

// writeCert stores a certificate for address and its private key as PEM
// files in dir.
func writeCert(address, dir string) (string, string, error) {
	cert, certPEM, err := network.GenerateSelfSignedCert(address)
	if err != nil {
		return "", "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		return "", "", fmt.Errorf("encode private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}
