// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strand-protocol/strand/internal/sad"
)

// sadJSON is the human-editable JSON shape accepted by `sad encode` and
// produced by `sad decode`.
type sadJSON struct {
	ModelArch     *uint32  `json:"modelArch,omitempty"`
	Capabilities  *uint32  `json:"capabilities,omitempty"`
	ContextWindow *uint32  `json:"contextWindow,omitempty"`
	MaxLatencyMs  *uint32  `json:"maxLatencyMs,omitempty"`
	MaxCostMilli  *uint32  `json:"maxCostMilli,omitempty"`
	TrustLevel    *uint8   `json:"trustLevel,omitempty"`
	RegionPrefer  []uint16 `json:"regionPrefer,omitempty"`
	RegionExclude []uint16 `json:"regionExclude,omitempty"`
}

func (j *sadJSON) toSAD() (*sad.SAD, error) {
	s := sad.New()
	if j.ModelArch != nil {
		if err := s.AddUint32(sad.TagModelArch, *j.ModelArch); err != nil {
			return nil, err
		}
	}
	if j.Capabilities != nil {
		if err := s.AddUint32(sad.TagCapabilityBitset, *j.Capabilities); err != nil {
			return nil, err
		}
	}
	if j.ContextWindow != nil {
		if err := s.AddUint32(sad.TagContextWindow, *j.ContextWindow); err != nil {
			return nil, err
		}
	}
	if j.MaxLatencyMs != nil {
		if err := s.AddUint32(sad.TagMaxLatencyMs, *j.MaxLatencyMs); err != nil {
			return nil, err
		}
	}
	if j.MaxCostMilli != nil {
		if err := s.AddUint32(sad.TagMaxCostMilli, *j.MaxCostMilli); err != nil {
			return nil, err
		}
	}
	if j.TrustLevel != nil {
		if err := s.AddUint8(sad.TagTrustLevel, *j.TrustLevel); err != nil {
			return nil, err
		}
	}
	if len(j.RegionPrefer) > 0 {
		if err := s.AddRegions(sad.TagRegionPrefer, j.RegionPrefer); err != nil {
			return nil, err
		}
	}
	if len(j.RegionExclude) > 0 {
		if err := s.AddRegions(sad.TagRegionExclude, j.RegionExclude); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func sadToJSON(s *sad.SAD) sadJSON {
	var out sadJSON
	if _, ok := s.Find(sad.TagModelArch); ok {
		v := s.GetU32(sad.TagModelArch)
		out.ModelArch = &v
	}
	if _, ok := s.Find(sad.TagCapabilityBitset); ok {
		v := s.GetU32(sad.TagCapabilityBitset)
		out.Capabilities = &v
	}
	if _, ok := s.Find(sad.TagContextWindow); ok {
		v := s.GetU32(sad.TagContextWindow)
		out.ContextWindow = &v
	}
	if _, ok := s.Find(sad.TagMaxLatencyMs); ok {
		v := s.GetU32(sad.TagMaxLatencyMs)
		out.MaxLatencyMs = &v
	}
	if _, ok := s.Find(sad.TagMaxCostMilli); ok {
		v := s.GetU32(sad.TagMaxCostMilli)
		out.MaxCostMilli = &v
	}
	if _, ok := s.Find(sad.TagTrustLevel); ok {
		v := s.GetU8(sad.TagTrustLevel)
		out.TrustLevel = &v
	}
	out.RegionPrefer = s.Regions(sad.TagRegionPrefer)
	out.RegionExclude = s.Regions(sad.TagRegionExclude)
	return out
}

func sadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sad",
		Short: "Encode, decode, and validate Semantic Address Descriptors",
	}
	cmd.AddCommand(sadEncodeCmd(), sadDecodeCmd(), sadValidateCmd())
	return cmd
}

func sadEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Read a SAD as JSON on stdin and write its hex-encoded wire form on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			var j sadJSON
			if err := json.NewDecoder(os.Stdin).Decode(&j); err != nil {
				return fmt.Errorf("reading json: %w", err)
			}
			s, err := j.toSAD()
			if err != nil {
				return err
			}
			buf, err := sad.Marshal(s)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf))
			return nil
		},
	}
}

func sadDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode a hex-encoded SAD and write it as JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			s, err := sad.Decode(buf)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sadToJSON(s))
		},
	}
}

func sadValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [hex]",
		Short: "Validate a hex-encoded SAD without decoding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			if err := sad.Validate(buf); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
