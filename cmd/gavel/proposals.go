// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/gavel/database"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/internal/config"
)

var proposalsFlags = struct {
	votes   bool
	entries bool
}{}

// proposalsRun prints the stored governance state without starting a node
func proposalsRun(cfg *config.Config, out io.Writer) error {
	logger := slog.New(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}),
	)
	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		Logger:         logger,
		BlobPlugin:     cfg.BlobPlugin,
		MetadataPlugin: cfg.MetadataPlugin,
	})
	if db == nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("opening database: %w", err)
		}
		logger.Warn(
			"database needs recovery, output may include a partial commit",
			"error", err,
		)
	}
	proposals, err := db.Proposals()
	if err != nil {
		return err
	}
	receipts, err := db.Receipts()
	if err != nil {
		return err
	}
	receiptIDs := make(map[uint64]string, len(receipts))
	for _, r := range receipts {
		receiptIDs[r.ProposalID] = r.ID
	}

	now := time.Now()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tASSET\tPROPOSER\tYES\tNO\tSTATUS\tOUTCOME\tPRICE\tRECEIPT\tDEADLINE")
	for _, p := range proposals {
		price := "-"
		if p.PricePaid != nil {
			price = p.PricePaid.String()
		}
		receipt := "-"
		if id, ok := receiptIDs[p.ID]; ok {
			receipt = id
		}
		outcome := string(p.Outcome)
		if outcome == "" {
			outcome = "-"
		}
		fmt.Fprintf(
			tw,
			"%d\t%d\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.TargetAssetID,
			p.Proposer,
			p.YesVotes,
			p.NoVotes,
			p.StatusAt(now),
			outcome,
			price,
			receipt,
			p.Deadline.UTC().Format(time.RFC3339),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if proposalsFlags.votes {
		for _, p := range proposals {
			votes, err := db.ProposalVotes(p.ID)
			if err != nil {
				return err
			}
			if err := writeVotes(out, p, votes); err != nil {
				return err
			}
		}
	}

	if proposalsFlags.entries {
		entries, err := db.TreasuryEntries(0)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tAMOUNT\tBALANCE\tCOUNTERPARTY\tPROPOSAL")
		for _, e := range entries {
			proposal := "-"
			if e.ProposalID != nil {
				proposal = fmt.Sprintf("%d", *e.ProposalID)
			}
			fmt.Fprintf(
				tw,
				"%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.UTC().Format(time.RFC3339),
				e.Kind,
				e.Amount,
				e.BalanceAfter,
				e.Counterparty,
				proposal,
			)
		}
		return tw.Flush()
	}
	return nil
}

func writeVotes(
	out io.Writer,
	p governance.Proposal,
	votes []governance.VoteRecord,
) error {
	fmt.Fprintf(out, "\nproposal %d votes:\n", p.ID)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tVOTER\tVOTE\tCAST")
	for _, v := range votes {
		fmt.Fprintf(
			tw,
			"%d\t%s\t%s\t%s\n",
			v.TokenID,
			v.Voter,
			v.Vote,
			v.CastAt.UTC().Format(time.RFC3339),
		)
	}
	return tw.Flush()
}

func proposalsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List stored proposals and their outcomes",
		Run: func(cmd *cobra.Command, args []string) {
			if err := proposalsRun(configFromCommand(cmd), os.Stdout); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().
		BoolVar(&proposalsFlags.votes, "votes", false, "include per-token vote records")
	cmd.Flags().
		BoolVar(&proposalsFlags.entries, "entries", false, "include the treasury journal")
	return cmd
}
