// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strand-protocol/strand/internal/routetable"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/internal/score"
	"github.com/strand-protocol/strand/pkg/id"
)

func scoreCmd() *cobra.Command {
	var latencyUS, costMilli uint32
	var trustLevel uint8
	var regionCode uint16

	cmd := &cobra.Command{
		Use:   "score [query-hex] [candidate-capabilities-hex]",
		Short: "Score a candidate route entry against a query SAD",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			queryBuf, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid query hex: %w", err)
			}
			query, err := sad.Decode(queryBuf)
			if err != nil {
				return fmt.Errorf("decoding query: %w", err)
			}

			capBuf, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("invalid candidate hex: %w", err)
			}
			caps, err := sad.Decode(capBuf)
			if err != nil {
				return fmt.Errorf("decoding candidate capabilities: %w", err)
			}

			entry := routetable.Entry{
				NodeID:       id.New(),
				Capabilities: *caps,
				LatencyUS:    latencyUS,
				CostMilli:    costMilli,
				TrustLevel:   trustLevel,
				RegionCode:   regionCode,
			}

			s := score.Score(score.DefaultWeights, query, &entry)
			if s < 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "disqualified")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", s)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&latencyUS, "latency-us", 0, "candidate's advertised latency in microseconds")
	cmd.Flags().Uint32Var(&costMilli, "cost-milli", 0, "candidate's advertised cost in milli-units")
	cmd.Flags().Uint8Var(&trustLevel, "trust-level", 0, "candidate's advertised trust level")
	cmd.Flags().Uint16Var(&regionCode, "region", 0, "candidate's region code")

	return cmd
}
