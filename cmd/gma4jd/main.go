// Command gma4jd is a demo server built on pkg/ws: it accepts connections,
// completes the handshake, and logs every authenticated packet it sees.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/lolyay/gma4j-go/internal/demopackets"
	"github.com/lolyay/gma4j-go/pkg/ws"
)

type demoHandler struct {
	ws.BaseHandler
	logger *slog.Logger
}

func (h *demoHandler) OnAuthenticated(session *ws.Session) {
	h.logger.Info("session authenticated", "session_id", session.ID())
}

func (h *demoHandler) OnIdentified(session *ws.Session, identifier string) {
	h.logger.Info("session identified", "session_id", session.ID(), "identifier", identifier)
}

func (h *demoHandler) OnPacket(session *ws.Session, packet ws.Packet) {
	h.logger.Info("packet received", "session_id", session.ID(), "tag", packet.PacketTag())

	if update, ok := packet.(*demopackets.PacketGameUpdate); ok {
		h.logger.Info("game update", "action", update.Action, "data", update.Data)
	}
}

func (h *demoHandler) OnDisconnect(session *ws.Session) {
	h.logger.Info("session disconnected", "session_id", session.ID())
}

func main() {
	var (
		listenAddr      string
		preSharedSecret string
		tlsCertFile     string
		tlsKeyFile      string
	)

	rootCmd := &cobra.Command{
		Use:   "gma4jd",
		Short: "Demo secure WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

			if preSharedSecret == "" {
				return fmt.Errorf("--secret is required")
			}
			if (tlsCertFile == "") != (tlsKeyFile == "") {
				return fmt.Errorf("--tls-cert and --tls-key must be set together")
			}

			cfg := ws.DefaultServerConfig(preSharedSecret)
			cfg.Logger = logger

			handler := &demoHandler{logger: logger}
			server := ws.NewServer(cfg, handler)

			if tlsCertFile != "" {
				logger.Info("listening", "addr", listenAddr, "tls", true)
				return http.ListenAndServeTLS(listenAddr, tlsCertFile, tlsKeyFile, server)
			}

			logger.Info("listening", "addr", listenAddr, "tls", false)
			return http.ListenAndServe(listenAddr, server)
		},
	}

	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", ":8080", "address to listen on")
	rootCmd.PersistentFlags().StringVar(&preSharedSecret, "secret", "", "pre-shared HMAC secret clients must know")
	rootCmd.PersistentFlags().StringVar(&tlsCertFile, "tls-cert", "", "TLS certificate path (enables TLS with --tls-key)")
	rootCmd.PersistentFlags().StringVar(&tlsKeyFile, "tls-key", "", "TLS key path (enables TLS with --tls-cert)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
