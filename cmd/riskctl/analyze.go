package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"terratruce-gateway/internal/app"
	"terratruce-gateway/internal/chat"
	"terratruce-gateway/internal/llm"
)

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <location...>",
		Short: "Print the risk report for a location as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, opts.logger())
			if err != nil {
				return err
			}
			defer a.Close()

			rep := a.Analysis.Analyze(cmd.Context(), strings.Join(args, " "))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}

func newChatCmd(opts *cliOptions) *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Ask the property assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, opts.logger())
			if err != nil {
				return err
			}
			defer a.Close()

			history := []llm.Message{{Role: llm.RoleUser, Content: strings.Join(args, " ")}}
			reply := a.Chat.Send(cmd.Context(), history, chat.Context{Location: location})
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "location the question is about")
	return cmd
}
