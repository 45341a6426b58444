// Command govunlocks-cli computes the unlock schedule of one voting
// snapshot and prints it as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"governance-unlocks/internal/amount"
	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/snapshot"
	"governance-unlocks/internal/tracks"
)

func main() {
	var (
		path      = flag.String("snapshot", "-", "Snapshot JSON file, - for stdin")
		at        = flag.Uint64("at", 0, "Block to split claimable from pending at (default: snapshot current_block)")
		tracksURL = flag.String("tracks", getEnv("TRACKS_URL", ""), "Track metadata API base URL")
		decimals  = flag.Int("decimals", getEnvInt("TOKEN_DECIMALS", 10), "Token decimals")
		symbol    = flag.String("symbol", getEnv("TOKEN_SYMBOL", "DOT"), "Token symbol")
		pretty    = flag.Bool("pretty", true, "Pretty-print JSON output")
	)
	flag.Parse()

	snap, err := readSnapshot(*path)
	if err != nil {
		log.Fatalf("read snapshot failed: %v", err)
	}
	tracks.NewResolver(*tracksURL, 0, nil).Fill(&snap.Info)

	head := snap.CurrentBlock
	if *at > 0 {
		if *at > uint64(^governance.BlockNumber(0)) {
			log.Fatalf("block %d out of range", *at)
		}
		head = governance.BlockNumber(*at)
	}

	schedule := computeSchedule(snap)
	out := project(snap.Account, head, schedule, int32(*decimals), *symbol)

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode failed: %v", err)
	}
}

func computeSchedule(snap *snapshot.Snapshot) governance.Schedule {
	return governance.NewCalculator().CreateUnlocksSchedule(snap.TracksVoting, snap.Referendums, snap.Info)
}

func readSnapshot(path string) (*snapshot.Snapshot, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return snapshot.Decode(r)
}

func project(account string, head governance.BlockNumber, s governance.Schedule, decimals int32, symbol string) any {
	type chunk struct {
		Amount    string                  `json:"amount"`
		Formatted string                  `json:"formatted"`
		UnlockAt  *governance.BlockNumber `json:"unlock_at,omitempty"`
		Actions   governance.ActionSet    `json:"actions"`
	}
	claim := s.ClaimSchedule(head)

	var claimable *chunk
	if c := claim.Claimable; c != nil {
		claimable = &chunk{Amount: c.Amount.String(), Formatted: amount.Format(c.Amount, decimals, symbol), Actions: c.Actions}
	}
	pending := make([]chunk, 0, len(claim.Pending))
	for _, p := range claim.Pending {
		unlockAt := p.UnlockAt
		pending = append(pending, chunk{
			Amount:    p.Amount.String(),
			Formatted: amount.Format(p.Amount, decimals, symbol),
			UnlockAt:  &unlockAt,
			Actions:   p.Actions,
		})
	}
	items := s.Items
	if items == nil {
		items = []governance.ScheduleItem{}
	}

	return struct {
		Account   string                    `json:"account,omitempty"`
		Head      governance.BlockNumber    `json:"head"`
		Total     string                    `json:"total"`
		Claimable *chunk                    `json:"claimable"`
		Pending   []chunk                   `json:"pending"`
		Items     []governance.ScheduleItem `json:"items"`
	}{
		Account:   account,
		Head:      head,
		Total:     amount.Format(s.TotalAmount(), decimals, symbol),
		Claimable: claimable,
		Pending:   pending,
		Items:     items,
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring invalid %s=%q\n", k, v)
		return def
	}
	return n
}
