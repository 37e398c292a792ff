// Command tuidaw drives the audio engine orchestrator from outside the
// (excluded) terminal UI: server lifecycle, project load/save, and
// synth-definition compilation (§6, AMBIENT STACK "CLI").
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohsenil85/tuidaw/internal/dispatch"
	"github.com/mohsenil85/tuidaw/internal/engine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tuidaw",
		Short: "Audio engine orchestrator for a SuperCollider-backed terminal DAW",
	}
	root.AddCommand(newServeCmd(), newProjectCmd(), newSynthdefCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var udpPort int
	var host string
	var feedbackAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start scsynth, connect, and hold the engine open",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New()
			if err := dispatch.Dispatch(e, dispatch.Server{Action: dispatch.ServerStart, Port: udpPort}); err != nil {
				return fmt.Errorf("start server: %w", err)
			}
			err := dispatch.Dispatch(e, dispatch.Server{
				Action: dispatch.ServerConnect, Host: host, Port: udpPort, FeedbackListenAddr: feedbackAddr,
			})
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tuidaw: connected")
			select {}
		},
	}
	cmd.Flags().IntVar(&udpPort, "port", 57110, "scsynth UDP port")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "scsynth host")
	cmd.Flags().StringVar(&feedbackAddr, "feedback-addr", "127.0.0.1:57111", "local address the feedback reader listens on")
	return cmd
}

func newProjectCmd() *cobra.Command {
	project := &cobra.Command{
		Use:   "project",
		Short: "Create, load, or save a project file",
	}
	project.AddCommand(newProjectNewCmd(), newProjectLoadCmd(), newProjectSaveCmd())
	return project
}

func newProjectNewCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Write a fresh project file with the default project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New()
			if err := dispatch.Dispatch(e, dispatch.Session{Action: dispatch.SessionSave, Path: path}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tuidaw: wrote new project to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "project file path (default: <config-home>/tuidaw/default.sqlite)")
	return cmd
}

func newProjectLoadCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Validate that a project file loads",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New()
			if err := dispatch.Dispatch(e, dispatch.Session{Action: dispatch.SessionLoad, Path: path}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tuidaw: loaded %d instrument(s) from %s\n", len(e.Project.Instruments), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "project file path")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newProjectSaveCmd() *cobra.Command {
	var loadPath, savePath string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Load a project and immediately re-save it (schema migration helper)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New()
			if err := dispatch.Dispatch(e, dispatch.Session{Action: dispatch.SessionLoad, Path: loadPath}); err != nil {
				return err
			}
			if savePath == "" {
				savePath = loadPath
			}
			return dispatch.Dispatch(e, dispatch.Session{Action: dispatch.SessionSave, Path: savePath})
		},
	}
	cmd.Flags().StringVar(&loadPath, "path", "", "project file path to load")
	cmd.Flags().StringVar(&savePath, "out", "", "destination path (default: overwrite --path)")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newSynthdefCmd() *cobra.Command {
	synthdef := &cobra.Command{
		Use:   "synthdef",
		Short: "Compile and load custom synth definitions",
	}
	synthdef.AddCommand(newSynthdefCompileCmd())
	return synthdef
}

func newSynthdefCompileCmd() *cobra.Command {
	var scriptPath string
	var udpPort int
	var host string

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a synth-definition script with sclang and report the result (does not load the compiled definitions)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New()
			if err := dispatch.Dispatch(e, dispatch.Server{Action: dispatch.ServerConnect, Host: host, Port: udpPort, FeedbackListenAddr: "127.0.0.1:0"}); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer e.Disconnect()
			if err := dispatch.Dispatch(e, dispatch.Server{Action: dispatch.ServerCompileSynthdefs, Path: scriptPath}); err != nil {
				return err
			}
			for {
				if res, ok := e.PollCompileResult(); ok {
					return res.Err
				}
				time.Sleep(100 * time.Millisecond)
			}
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to the sclang synth-definition script")
	cmd.Flags().IntVar(&udpPort, "port", 57110, "scsynth UDP port")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "scsynth host")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}
