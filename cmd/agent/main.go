// Command agent is a punch clock client: it punches in, keeps a liveness
// heartbeat going, and makes a best-effort attempt to close the session when
// it is shut down. A closure that cannot be delivered is parked in the local
// ledger and replayed on the next start.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"punchclock/config"
	"punchclock/presence"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "punch clock server URL")
	token := flag.String("token", os.Getenv("PUNCHCLOCK_TOKEN"), "bearer token")
	ledgerPath := flag.String("ledger", "", "pending-closure ledger path (defaults to the user config dir)")
	flag.Parse()

	if *token == "" {
		log.Fatal("a token is required (flag -token or PUNCHCLOCK_TOKEN)")
	}

	cfg := config.Load()

	path := *ledgerPath
	if path == "" {
		var err error
		path, err = presence.DefaultLedgerPath()
		if err != nil {
			log.Fatalf("cannot resolve ledger path: %v", err)
		}
	}
	ledger := presence.NewLedger(path)

	autoPunchOutURL := *server + "/auto-punch-out"
	emitter := presence.NewEmitter(nil, ledger,
		presence.NewBeaconTransport(autoPunchOutURL, *token),
		presence.NewKeepaliveTransport(autoPunchOutURL, *token, cfg.KeepaliveTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Replay anything a previous run failed to deliver before opening a
	// new session.
	if synced, err := emitter.SyncPending(ctx); err != nil {
		log.Printf("pending closure not yet delivered: %v", err)
		go emitter.RetryPending(ctx, cfg.PendingRetryInterval)
	} else if synced {
		log.Print("replayed a pending closure from a previous session")
	}

	if err := punchIn(ctx, *server, *token); err != nil {
		log.Fatalf("punch-in failed: %v", err)
	}
	emitter.BeginSession(presence.NewSession())
	log.Print("punched in")

	heartbeat := presence.NewHeartbeat(
		presence.NewKeepaliveTransport(*server+"/heartbeat", *token, cfg.KeepaliveTimeout),
		cfg.HeartbeatInterval,
	)
	go heartbeat.Run(ctx)

	<-ctx.Done()

	// The signal context is gone; give the closure delivery its own bounded
	// window, the moral equivalent of the page-teardown grace period.
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.KeepaliveTimeout)
	defer cancel()
	if err := emitter.SignalClosure(closeCtx, presence.TriggerHide); err != nil {
		log.Printf("closure signal failed and could not be parked: %v", err)
	}
	log.Print("shutdown complete")
}

func punchIn(ctx context.Context, server, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/punch-in", bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &punchInError{status: resp.Status}
	}
	return nil
}

type punchInError struct {
	status string
}

func (e *punchInError) Error() string {
	return "server returned " + e.status
}
