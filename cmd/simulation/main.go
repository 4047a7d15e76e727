package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/document"
	"github.com/OussamaSEBROU/the-senctuary/internal/persistence"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"
	"github.com/OussamaSEBROU/the-senctuary/internal/session"
	"github.com/OussamaSEBROU/the-senctuary/internal/stream"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"
	"github.com/OussamaSEBROU/the-senctuary/pkg/kv"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Simulation drives the whole session flow against a scripted provider:
// upload, streamed exchange, switch, delete. No server, no network, no
// API key needed.
func main() {
	color.Cyan("=== Sanctuary Session Simulation ===")

	workDir, err := os.MkdirTemp("", "sanctuary-sim-*")
	if err != nil {
		log.Fatalf("Failed to create work dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	simLogger := logger.NewIsolatedLogger(filepath.Join(workDir, "simulation.log"))

	encoder, err := document.NewEncoder(filepath.Join(workDir, "uploads"), 0, simLogger)
	if err != nil {
		log.Fatalf("Failed to create encoder: %v", err)
	}

	store, err := kv.NewFileStore(filepath.Join(workDir, "store"), 0)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	gateway := persistence.NewGateway(store, "sanctuary:conversations", 0, simLogger)

	provider := &genai.MockProvider{
		Axioms: []genai.Axiom{
			{Label: "The Observer Effect", Explanation: "Measurement disturbs the measured."},
			{Label: "Falsifiability", Explanation: "A claim must risk being wrong."},
			{Label: "Parsimony", Explanation: "Prefer the simplest sufficient explanation."},
		},
		Fragments:     []string{"The manuscript ", "builds its case ", "on three pillars, ", "each examined in turn."},
		FragmentDelay: 120 * time.Millisecond,
		Title:         "Three Pillars Of The Argument",
	}

	manager := session.NewManager(
		encoder,
		gateway,
		provider,
		stream.NewAccumulator(10*time.Second),
		session.AttachEveryTurn,
		simLogger,
	)
	manager.Bootstrap(context.Background())

	ctx := context.Background()

	// 1. Upload
	color.White("\nUploading manuscript...")
	conv, err := manager.StartResearch(ctx, "three-pillars.pdf", []byte("%PDF-1.7\nsimulated manuscript body"), "en")
	if err != nil {
		log.Fatalf("Upload failed: %v", err)
	}
	color.Green("Conversation %s ready", conv.Id)
	for _, a := range conv.Axioms {
		fmt.Printf("  • %s — %s\n", color.YellowString(a.Label), a.Explanation)
	}

	// 2. Streamed exchange
	color.White("\nUSER: What is the central argument?")
	start := time.Now()
	turn, err := manager.Send(ctx, "What is the central argument?", "en", func(_ uuid.UUID, accumulated string) {
		fmt.Printf("\r%s %s", color.CyanString("AI>"), accumulated)
	})
	if err != nil {
		log.Fatalf("Send failed: %v", err)
	}
	fmt.Println()
	color.Green("Committed in %v: %q", time.Since(start), turn.Text)

	// 3. Busy gate
	go func() {
		_, _ = manager.Send(ctx, "long question", "en", nil)
	}()
	time.Sleep(30 * time.Millisecond)
	if _, err := manager.Send(ctx, "impatient second question", "en", nil); err == session.ErrBusy {
		color.Yellow("Concurrent send correctly rejected: %v", err)
	}
	time.Sleep(time.Second)

	// 4. Second manuscript and switch back
	second, err := manager.StartResearch(ctx, "rebuttal.pdf", []byte("%PDF-1.7\nanother manuscript"), "en")
	if err != nil {
		log.Fatalf("Second upload failed: %v", err)
	}
	color.Green("Second conversation %s active", second.Id)

	if _, err := manager.Select(ctx, conv.Id); err != nil {
		log.Fatalf("Select failed: %v", err)
	}
	color.Green("Switched back to %s", conv.Id)

	// 5. Delete and final state
	if err := manager.Delete(ctx, second.Id); err != nil {
		log.Fatalf("Delete failed: %v", err)
	}
	snap := manager.Snapshot()
	color.Cyan("\nFinal state: %s, %d stored conversation(s), %d turn(s) in active",
		snap.State, len(snap.Conversations), len(snap.Active.Turns))
}
