// Command mcp-client drives an MCP server over stdio or HTTP and prints a
// colorized trace of every request and response, for manual exploration and
// smoke testing of a server's handlers.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oxhq/mcpcore/mcp"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// peer is anything that can carry one JSON-RPC request/response round trip.
type peer interface {
	call(method string, params any) (mcp.ResponseMessage, error)
	close() error
}

func main() {
	var (
		serverCmd string
		httpURL   string
	)

	root := &cobra.Command{Use: "mcp-client", Short: "Drive an MCP server and trace the traffic"}
	root.PersistentFlags().StringVar(&serverCmd, "stdio-cmd", "", "shell command launching a stdio server")
	root.PersistentFlags().StringVar(&httpURL, "http-url", "", "base URL of an HTTP server's /mcp endpoint")

	connect := func() (peer, error) {
		switch {
		case httpURL != "":
			return &httpPeer{base: httpURL, client: &http.Client{Timeout: 30 * time.Second}}, nil
		case serverCmd != "":
			return newStdioPeer(serverCmd)
		default:
			return nil, fmt.Errorf("pass --stdio-cmd or --http-url")
		}
	}

	root.AddCommand(listToolsCmd(connect))
	root.AddCommand(callToolCmd(connect))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func listToolsCmd(connect func() (peer, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List the server's registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := connect()
			if err != nil {
				return err
			}
			defer p.close()

			if err := initialize(p); err != nil {
				return err
			}
			resp, err := trace(p, "tools/list", map[string]any{})
			if err != nil {
				return err
			}
			if resp.Error != nil {
				return fmt.Errorf("%s", resp.Error.Message)
			}
			fmt.Println(green("tools/list succeeded"))
			return nil
		},
	}
}

func callToolCmd(connect func() (peer, error)) *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "call [tool-name]",
		Short: "Call a tool and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := connect()
			if err != nil {
				return err
			}
			defer p.close()

			if err := initialize(p); err != nil {
				return err
			}

			var toolArgs map[string]any
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &toolArgs); err != nil {
					return fmt.Errorf("invalid --args JSON: %w", err)
				}
			}

			resp, err := trace(p, "tools/call", map[string]any{
				"name":      args[0],
				"arguments": toolArgs,
			})
			if err != nil {
				return err
			}
			if resp.Error != nil {
				fmt.Println(red("tool call failed:"), resp.Error.Message)
				return nil
			}
			fmt.Println(green("tool call succeeded"))
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "JSON object of tool arguments")
	return cmd
}

func initialize(p peer) error {
	resp, err := trace(p, "initialize", map[string]any{
		"protocolVersion": mcp.SupportedProtocolVersions[0],
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "mcp-client", "version": "0.1.0"},
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize failed: %s", resp.Error.Message)
	}
	return nil
}

// trace sends method/params, prints a colorized request/response pair, and
// returns the parsed response.
func trace(p peer, method string, params any) (mcp.ResponseMessage, error) {
	fmt.Printf("%s %s\n", bold(cyan("→")), bold(method))
	if data, err := json.MarshalIndent(params, "  ", "  "); err == nil {
		fmt.Printf("  %s\n", yellow(string(data)))
	}

	resp, err := p.call(method, params)
	if err != nil {
		fmt.Printf("%s %v\n", red("←"), err)
		return mcp.ResponseMessage{}, err
	}

	if resp.Error != nil {
		fmt.Printf("%s %s\n", red("←"), resp.Error.Message)
	} else {
		data, _ := json.MarshalIndent(resp.Result, "  ", "  ")
		fmt.Printf("%s\n  %s\n", blue("←"), string(data))
	}
	return resp, nil
}

// stdioPeer drives a subprocess MCP server over its stdin/stdout pipes.
type stdioPeer struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	decoder *json.Decoder
	nextID  int
}

func newStdioPeer(shellCmd string) (*stdioPeer, error) {
	cmd := exec.Command("sh", "-c", shellCmd)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &stdioPeer{cmd: cmd, stdin: stdin, decoder: json.NewDecoder(stdout)}, nil
}

func (p *stdioPeer) call(method string, params any) (mcp.ResponseMessage, error) {
	p.nextID++
	req, err := mcp.NewRequestMessage(json.Number(fmt.Sprint(p.nextID)), method, params)
	if err != nil {
		return mcp.ResponseMessage{}, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return mcp.ResponseMessage{}, err
	}
	if _, err := fmt.Fprintf(p.stdin, "%s\n", data); err != nil {
		return mcp.ResponseMessage{}, err
	}

	var resp mcp.ResponseMessage
	if err := p.decoder.Decode(&resp); err != nil {
		return mcp.ResponseMessage{}, err
	}
	return resp, nil
}

func (p *stdioPeer) close() error {
	_ = p.stdin.Close()
	return p.cmd.Wait()
}

// httpPeer drives an HTTP transport server, treating each call as an
// independent POST (no session reuse beyond the Mcp-Session-Id header).
type httpPeer struct {
	base      string
	client    *http.Client
	sessionID string
	nextID    int
}

func (p *httpPeer) call(method string, params any) (mcp.ResponseMessage, error) {
	p.nextID++
	req, err := mcp.NewRequestMessage(json.Number(fmt.Sprint(p.nextID)), method, params)
	if err != nil {
		return mcp.ResponseMessage{}, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return mcp.ResponseMessage{}, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, p.base, bytes.NewReader(data))
	if err != nil {
		return mcp.ResponseMessage{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", p.sessionID)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return mcp.ResponseMessage{}, err
	}
	defer httpResp.Body.Close()

	if id := httpResp.Header.Get("Mcp-Session-Id"); id != "" {
		p.sessionID = id
	}

	var resp mcp.ResponseMessage
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return mcp.ResponseMessage{}, err
	}
	return resp, nil
}

func (p *httpPeer) close() error { return nil }
