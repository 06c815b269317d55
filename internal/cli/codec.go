package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"grimoire/internal/entity"
	"grimoire/internal/refcodec"
)

var (
	encodeType  string
	encodeID    string
	encodeLabel string

	decodeCanonical bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Show the text, reference and image segments of a document",
	Long: `Decodes a stored rich-text document into its ordered segments.
Reads stdin when no file (or "-") is given. Malformed reference markup
is reported as text, never as an error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the canonical markup for a reference",
	Args:  cobra.NoArgs,
	RunE:  runEncode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeCanonical, "canonical", false, "print the document with every token rewritten in canonical form")
	encodeCmd.Flags().StringVarP(&encodeType, "type", "t", string(entity.Default), "entity type (Rule, Ability, Feat, Spell)")
	encodeCmd.Flags().StringVar(&encodeID, "id", "", "entity id (required)")
	encodeCmd.Flags().StringVarP(&encodeLabel, "label", "l", "", "display label")
	_ = encodeCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(decodeCmd, encodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	document, err := readDocument(cmd, args)
	if err != nil {
		return err
	}
	if decodeCanonical {
		cmd.Print(refcodec.Canonicalize(document))
		return nil
	}
	segments := refcodec.Decode(document)

	if jsonOut {
		data, err := json.MarshalIndent(segments, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal segments: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	for i, seg := range segments {
		switch seg.Kind {
		case refcodec.KindReference:
			ref := seg.Reference
			cmd.Printf("[%d] reference %s %s %q\n", i, ref.Type, ref.ID, refcodec.PlainLabel(*ref))
		case refcodec.KindImage:
			cmd.Printf("[%d] image %s\n", i, seg.Image.Src)
		default:
			cmd.Printf("[%d] text %q\n", i, seg.Text)
		}
	}
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	t, err := entity.Parse(encodeType)
	if err != nil {
		return err
	}
	if strings.TrimSpace(encodeID) == "" {
		return fmt.Errorf("--id must not be empty")
	}

	token := refcodec.Encode(t, encodeID, encodeLabel)
	if jsonOut {
		data, err := json.Marshal(map[string]string{"token": token})
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(token)
	return nil
}
