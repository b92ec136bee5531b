package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcc/pkg/cli"
	"github.com/newtron-network/newtcc/pkg/engine"
	"github.com/newtron-network/newtcc/pkg/playbook"
	"github.com/newtron-network/newtcc/pkg/util"
)

// blockValidator is implemented by modules that can check a block without
// contacting the controller.
type blockValidator interface {
	ValidateBlock(block map[string]any, state string) error
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a playbook without contacting the controller",
	Long: `Check a playbook's structure and value domains offline.

Every error found is reported; nothing is sent to the controller.

Examples:
  newtcc validate -f fabric.yaml
  newtcc validate -f fabric.yaml --state absent`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := playbook.Load(playbookFile, engine.Schemas(modules()))
		if err != nil {
			return err
		}
		state := doc.Envelope.State
		if stateFlag != "" {
			state = stateFlag
		}
		return validateBlocks(cmd.OutOrStdout(), doc.Blocks, state)
	},
}

func init() {
	validateCmd.Flags().StringVarP(&playbookFile, "file", "f", "", "Playbook file (required)")
	validateCmd.Flags().StringVar(&stateFlag, "state", "", "present or absent (overrides the playbook)")
	validateCmd.MarkFlagRequired("file")
}

// validateBlocks prints one dotted line per block and fails when any block
// is invalid.
func validateBlocks(out io.Writer, blocks []playbook.Block, state string) error {
	byKey := make(map[string]engine.Module)
	for _, m := range modules() {
		byKey[m.ConfigKey()] = m
	}

	failed := 0
	for i, b := range blocks {
		label := cli.DotPad(fmt.Sprintf("config[%d] %s", i, b.Key), 40)
		var err error
		if v, ok := byKey[b.Key].(blockValidator); ok {
			err = v.ValidateBlock(b.Value, state)
		}
		if err == nil {
			fmt.Fprintf(out, "%s %s\n", label, green("ok"))
			continue
		}
		failed++
		fmt.Fprintf(out, "%s %s\n", label, red("invalid"))
		var ve *util.ValidationError
		if errors.As(err, &ve) {
			for _, msg := range ve.Errors {
				fmt.Fprintf(out, "    %s\n", msg)
			}
		} else {
			fmt.Fprintf(out, "    %v\n", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d block(s) invalid", failed, len(blocks))
	}
	fmt.Fprintln(out, bold(fmt.Sprintf("%d block(s) valid", len(blocks))))
	return nil
}
