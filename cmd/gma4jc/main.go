// Command gma4jc is a demo client built on pkg/ws: it connects, completes
// the handshake, sends a version announcement and a demo game-update
// packet, then prints round-trip latency from the liveness controller.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lolyay/gma4j-go/internal/demopackets"
	"github.com/lolyay/gma4j-go/pkg/ws"
)

func main() {
	var (
		serverURL  string
		apiKey     string
		identifier string
	)

	rootCmd := &cobra.Command{
		Use:   "gma4jc",
		Short: "Demo secure WebSocket client",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

			if apiKey == "" {
				return fmt.Errorf("--api-key is required")
			}

			cfg := ws.DefaultSecureClientConfig(serverURL, apiKey)
			cfg.Logger = logger
			cfg.ClientName = "gma4jc"
			cfg.ClientVersion = "dev"
			cfg.ClientIdentifier = identifier
			cfg.PingInterval = 500 * time.Millisecond

			authenticated := make(chan struct{})
			var client *ws.SecureClient

			handler := &ws.ClientHandler{
				OnAuthenticated: func(session *ws.Session) {
					logger.Info("authenticated", "session_id", session.ID())
					close(authenticated)
				},
				OnPacket: func(session *ws.Session, packet ws.Packet) {
					logger.Info("packet received", "tag", packet.PacketTag())
				},
				OnDisconnect: func(session *ws.Session) {
					logger.Info("disconnected", "session_id", session.ID())
				},
				OnReconnectFailed: func() {
					logger.Error("reconnect attempts exhausted")
				},
			}

			client = ws.NewSecureClient(cfg, handler)

			ctx := context.Background()
			if err := client.Connect(ctx); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer client.Close()

			select {
			case <-authenticated:
			case <-time.After(cfg.ConnectionTimeout):
				return fmt.Errorf("handshake did not complete in time")
			}

			session := client.Session()
			if err := session.Send(&demopackets.PacketGameUpdate{
				Action: "move",
				Data:   "1,2,3",
			}, cfg.CompressionThreshold); err != nil {
				return fmt.Errorf("send: %w", err)
			}

			time.Sleep(2 * time.Second)
			logger.Info("latency",
				"last_ms", client.Liveness().LastLatencyMillis(),
				"avg_ms", client.Liveness().AverageLatencyMillis(),
				"loss", client.Liveness().PacketLoss(),
			)

			return nil
		},
	}

	rootCmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8080/ws", "server URL")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "pre-shared HMAC key matching the server's secret")
	rootCmd.Flags().StringVar(&identifier, "identifier", "", "optional client identifier to claim after authentication")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
