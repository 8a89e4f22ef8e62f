// Command coordd wires the coordination substrate, swarm orchestrator and
// activity folder into a single process, the way control_plane/main.go
// wires FluxForge's store/scheduler/coordination stack. It is a thin
// embedding-demonstration entrypoint, not a full API server; spec §1
// places the HTTP/REST surface out of scope.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/asdlc-dev/swarmcoord/activity"
	"github.com/asdlc-dev/swarmcoord/coordination"
	"github.com/asdlc-dev/swarmcoord/swarm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func instanceID() string {
	if id := os.Getenv("COORD_INSTANCE_ID"); id != "" {
		return id
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "coordd"
	}
	return hostname
}

func main() {
	coordCfg, err := coordination.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid coordination config: %v", err)
	}

	coordClient, err := coordination.NewClient(coordCfg)
	if err != nil {
		log.Fatalf("failed to construct coordination client: %v", err)
	}

	ctx := context.Background()
	self := instanceID()
	if err := coordClient.Enter(ctx, self); err != nil {
		log.Fatalf("failed to enter coordination substrate: %v", err)
	}
	defer coordClient.Exit()
	log.Printf("coordd: entered coordination substrate as %s (redis=%s)", self, coordCfg.RedisAddr)

	if err := coordClient.Presence.Register(ctx, self, ""); err != nil {
		log.Printf("coordd: failed to register presence: %v", err)
	}

	swarmCfg, err := swarm.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid swarm config: %v", err)
	}

	swarmStore := swarm.NewStore(coordClient.RedisClient(), swarmCfg)
	sessions := swarm.NewSessionManager(swarmStore, swarmCfg)
	locker := coordination.NewRedisLocker(coordClient.RedisClient())
	gate := swarm.NewAdmissionGate(locker, swarmCfg)
	dispatcher := swarm.NewDispatcher(sessions, swarmStore, coordClient, gate, swarmCfg, self)

	janitor := swarm.NewSlotJanitor(locker, swarmCfg, time.Minute)
	janitor.Start(ctx)
	log.Printf("coordd: slot janitor running (max_concurrent_swarms=%d)", swarmCfg.MaxConcurrentSwarms)

	folder := activity.NewFolder(coordClient.Store)

	sub := coordClient.Bus.Subscribe(ctx, self, true, func(n *coordination.Notification) {
		log.Printf("coordd: notification %s type=%s from=%s", n.MessageID, n.Type, n.From)
	})
	defer sub.Close()

	if err := coordClient.Bus.DrainOfflineQueue(ctx, self, 100, func(n *coordination.Notification) {
		log.Printf("coordd: replayed offline notification %s", n.MessageID)
	}); err != nil {
		log.Printf("coordd: failed to drain offline queue: %v", err)
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report, err := coordClient.HealthCheck(r.Context())
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(err.Error()))
			return
		}
		if !report.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write([]byte(report.Status))
	})

	http.HandleFunc("/activity", func(w http.ResponseWriter, r *http.Request) {
		projection := folder.GetActivity(r.Context(), 10)
		if projection.Current != nil {
			fmt.Fprintf(w, "current: %s\n", projection.Current.Operation)
		}
		fmt.Fprintf(w, "recent activities: %d\n", len(projection.Recent))
	})

	// noopExecutor stands in for the real reviewer implementation, which
	// is supplied by the embedding service per spec §4.8 step 4.
	noopExecutor := func(ctx context.Context, sessionID, targetPath, reviewerType string) ([]swarm.ReviewFinding, error) {
		return nil, nil
	}

	http.HandleFunc("/swarm", func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("target")
		if target == "" {
			target = "."
		}
		session, err := dispatcher.Dispatch(r.Context(), target, nil, noopExecutor)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, "dispatch failed: %v\n", err)
			return
		}
		fmt.Fprintf(w, "swarm %s: status=%s total_findings=%d\n", session.ID, session.Status, session.UnifiedReport.TotalFindings)
	})

	http.Handle("/metrics", promhttp.Handler())

	addr := os.Getenv("COORDD_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	log.Printf("coordd: listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
