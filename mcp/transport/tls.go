package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// ListenAndServeTLS starts the HTTPS listener using cfg's cert/key pair. If
// both paths are empty, a throwaway self-signed certificate is generated for
// local development (never for production use).
func (h *HTTP) ListenAndServeTLS(cfg HTTPConfig) error {
	if cfg.TLSCertFile == "" && cfg.TLSKeyFile == "" {
		cert, err := generateDevCertificate()
		if err != nil {
			return fmt.Errorf("generate dev certificate: %w", err)
		}
		h.httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		return h.httpServer.ListenAndServeTLS("", "")
	}

	h.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return h.httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
}

// generateDevCertificate creates a short-lived, self-signed ECDSA certificate
// for `serve-http --tls` without operator-supplied material. Intended for
// local testing only; production deployments must pass real cert/key paths.
func generateDevCertificate() (tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"mcpcore dev"}, CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IsCA:         true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}
