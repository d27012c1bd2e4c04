// Command mcp-server runs an mcpcore server over stdio or HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oxhq/mcpcore/mcp"
	"github.com/oxhq/mcpcore/mcp/auth"
	"github.com/oxhq/mcpcore/mcp/transport"
)

func main() {
	_ = godotenv.Load()

	var (
		debug        bool
		instructions string
	)

	root := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run an MCP server",
	}
	root.PersistentFlags().BoolVar(&debug, "debug", os.Getenv("MCP_DEBUG") == "1", "enable debug logging")
	root.PersistentFlags().StringVar(&instructions, "instructions", os.Getenv("MCP_INSTRUCTIONS"), "instructions returned from initialize")

	root.AddCommand(serveStdioCmd(&debug, &instructions))
	root.AddCommand(serveHTTPCmd(&debug, &instructions))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildServer(debug bool, instructions string) *mcp.Server {
	cfg := mcp.DefaultConfig()
	cfg.Debug = debug
	cfg.Instructions = instructions
	return mcp.NewServer(cfg)
}

func serveStdioCmd(debug *bool, instructions *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-stdio",
		Short: "Serve one session over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := buildServer(*debug, *instructions)
			t := transport.NewStdio(os.Stdin, os.Stdout)
			sess := mcp.NewSession(srv, t, mcp.RoleServer)
			return t.Serve(cmd.Context(), sess)
		},
	}
}

func serveHTTPCmd(debug *bool, instructions *string) *cobra.Command {
	var (
		addr        string
		corsOrigin  string
		useTLS      bool
		certFile    string
		keyFile     string
		jwtIssuer   string
		jwtAudience string
		jwksURL     string
	)

	cmd := &cobra.Command{
		Use:   "serve-http",
		Short: "Serve over HTTP (optionally HTTPS)",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := buildServer(*debug, *instructions)

			httpCfg := transport.DefaultHTTPConfig()
			httpCfg.Addr = addr
			httpCfg.CORSOrigin = corsOrigin
			httpCfg.TLSCertFile = certFile
			httpCfg.TLSKeyFile = keyFile

			h := transport.NewHTTP(srv, httpCfg)

			if jwtIssuer != "" || jwksURL != "" {
				validator := auth.NewValidator(auth.Config{
					IssuerURL: jwtIssuer,
					Audience:  jwtAudience,
					JWKSURL:   jwksURL,
				}, *debug)
				h.Validator = validator.Allow
			}

			if useTLS {
				fmt.Fprintf(os.Stderr, "listening on https://%s\n", addr)
				return h.ListenAndServeTLS(httpCfg)
			}
			fmt.Fprintf(os.Stderr, "listening on http://%s\n", addr)
			return h.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("MCP_HTTP_ADDR", ":8080"), "listen address")
	cmd.Flags().StringVar(&corsOrigin, "cors-origin", os.Getenv("MCP_CORS_ORIGIN"), "Access-Control-Allow-Origin value")
	cmd.Flags().BoolVar(&useTLS, "tls", os.Getenv("MCP_TLS") == "1", "serve over HTTPS")
	cmd.Flags().StringVar(&certFile, "tls-cert", os.Getenv("MCP_TLS_CERT"), "TLS certificate path")
	cmd.Flags().StringVar(&keyFile, "tls-key", os.Getenv("MCP_TLS_KEY"), "TLS key path")
	cmd.Flags().StringVar(&jwtIssuer, "jwt-issuer", os.Getenv("MCP_JWT_ISSUER"), "expected JWT issuer")
	cmd.Flags().StringVar(&jwtAudience, "jwt-audience", os.Getenv("MCP_JWT_AUDIENCE"), "expected JWT audience")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", os.Getenv("MCP_JWKS_URL"), "JWKS endpoint for RSA tokens")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
