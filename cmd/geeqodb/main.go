// Command geeqodb is the CLI entrypoint for the embedded database's
// networked SQL front-end: it opens a catalog rooted at a data
// directory and serves the line protocol over TCP.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geeqodb/geeqodb/pkg/backup"
	"github.com/geeqodb/geeqodb/pkg/catalog"
	"github.com/geeqodb/geeqodb/pkg/dblog"
	"github.com/geeqodb/geeqodb/pkg/server"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geeqodb",
	Short: "geeqodb is an embedded OLAP database with a networked SQL front-end",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	cobra.OnInitialize(initLogging)

	serveCmd.Flags().String("data-dir", "./data", "database data directory")
	serveCmd.Flags().Uint16("port", 5252, "TCP port to listen on")
	rootCmd.AddCommand(serveCmd)

	backupCmd.Flags().String("data-dir", "./data", "database data directory")
	backupCmd.Flags().String("name", "", "backup name (generated if omitted)")
	backupCmd.Flags().String("parent", "", "parent backup name, for an incremental backup")
	rootCmd.AddCommand(backupCmd)

	restoreCmd.Flags().String("backup-dir", "./data", "database directory the backup was taken from")
	restoreCmd.Flags().String("name", "", "backup name to restore")
	restoreCmd.Flags().String("dest", "", "destination data directory")
	rootCmd.AddCommand(restoreCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	dblog.Init(dblog.Config{Level: dblog.Level(level), JSONOutput: jsonOutput})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the line-protocol server over a data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		port, _ := cmd.Flags().GetUint16("port")

		cat, err := catalog.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer cat.Close()

		srv := server.New(fmt.Sprintf(":%d", port), cat)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start server: %w", err)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		dblog.Info("shutting down")
		srv.Stop()
		os.Exit(2)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take a full or incremental backup of a data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		name, _ := cmd.Flags().GetString("name")
		parent, _ := cmd.Flags().GetString("parent")
		if name == "" {
			name = backup.NewBackupID()
		}

		cat, err := catalog.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer cat.Close()

		mgr := backup.New(dataDir)
		if parent == "" {
			if _, err := mgr.FullBackup(cat, name); err != nil {
				return fmt.Errorf("full backup: %w", err)
			}
		} else {
			if _, err := mgr.IncrementalBackup(cat, name, parent); err != nil {
				return fmt.Errorf("incremental backup: %w", err)
			}
		}
		fmt.Println("backup complete:", name)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a data directory from a backup chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		backupRoot, _ := cmd.Flags().GetString("backup-dir")
		name, _ := cmd.Flags().GetString("name")
		dest, _ := cmd.Flags().GetString("dest")
		if name == "" || dest == "" {
			return fmt.Errorf("--name and --dest are required")
		}

		mgr := backup.New(backupRoot)
		restored, err := mgr.Restore(name, dest)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		defer restored.Close()

		fmt.Println("restored into:", dest)
		return nil
	},
}
