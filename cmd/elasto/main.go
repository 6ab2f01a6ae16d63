// Package main is the entry point for elasto, the command-line client
// for the Azure Block Blob, Azure Page Blob, Azure File Service, Amazon
// S3, and read-only web backends exposed by the elasto and elasto/vfs
// packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/elasto/elasto"
	"github.com/elasto/elasto/internal/config"
	"github.com/elasto/elasto/internal/logging"
	"github.com/elasto/elasto/vfs"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "stat", "mkdir", "rmdir", "readdir", "rm", "cat", "put":
		os.Exit(runCommand(command, os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: elasto <command> [flags] <path>

Commands:
  stat     show metadata for a file/dir/container/bucket/share
  mkdir    create a directory/container/bucket/share
  rmdir    remove an empty directory/container/bucket/share
  readdir  list a directory/container/bucket/share
  rm       delete a file/object
  cat      read a file/object to stdout
  put      write stdin to a file/object

Flags (all commands):
  -backend string   azure-block-blob, azure-page-blob, azure-file, s3, web
  -config string     path to config file (default "elasto.yaml")
  -account string     Azure storage account / overrides config
  -bucket-host        use bucket-as-host-prefix S3 addressing`)
}

func runCommand(command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	backendName := fs.String("backend", "", "backend: azure-block-blob, azure-page-blob, azure-file, s3, web")
	configPath := fs.String("config", "elasto.yaml", "path to configuration file")
	account := fs.String("account", "", "Azure storage account (overrides config)")
	bucketHost := fs.Bool("bucket-host", false, "use bucket-as-host-prefix S3 addressing")
	create := fs.Bool("create", false, "create the target if it does not exist")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "%s: missing path argument\n", command)
		return 1
	}
	path := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	logging.Setup(cfg.Logging, os.Stderr)

	if err := elasto.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		return 1
	}
	defer elasto.Shutdown()

	backend, err := parseBackend(*backendName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	acc := cfg.Azure.Account
	if *account != "" {
		acc = *account
	}
	creds := vfs.Credentials{
		Account:              acc,
		AccountKey:           cfg.Azure.AccountKey,
		UseLiteSigning:       cfg.Azure.UseLiteSigning,
		ManagementPEMFile:    cfg.Azure.ManagementPEMFile,
		AccessKeyID:          cfg.S3.AccessKey,
		SecretAccessKey:      cfg.S3.SecretKey,
		InsecureHTTP:         cfg.Conn.InsecureHTTP,
		S3BucketAsHostPrefix: *bucketHost,
	}

	ctx := context.Background()
	flags := vfs.OpenFlags(0)
	if *create {
		flags |= vfs.FlagCreate
	}
	switch command {
	case "mkdir", "rmdir", "readdir":
		flags |= vfs.FlagDirectory
	}
	if command == "mkdir" {
		flags |= vfs.FlagCreate
	}

	h, err := vfs.Open(ctx, backend, creds, path, flags, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %q: %v\n", path, err)
		return 1
	}
	defer h.Close(ctx)

	switch command {
	case "stat":
		return cmdStat(ctx, h)
	case "mkdir":
		return 0 // Open already created it.
	case "rmdir":
		return cmdErr(h.Rmdir(ctx))
	case "readdir":
		return cmdReaddir(ctx, h)
	case "rm":
		return cmdErr(h.Remove(ctx))
	case "cat":
		return cmdCat(ctx, h)
	case "put":
		return cmdPut(ctx, h)
	default:
		return 1
	}
}

func parseBackend(name string) (vfs.Backend, error) {
	switch name {
	case "azure-block-blob":
		return vfs.BackendAzureBlockBlob, nil
	case "azure-page-blob":
		return vfs.BackendAzurePageBlob, nil
	case "azure-file":
		return vfs.BackendAzureFile, nil
	case "s3":
		return vfs.BackendS3, nil
	case "web":
		return vfs.BackendWeb, nil
	default:
		return 0, fmt.Errorf("-backend is required and must be one of azure-block-blob, azure-page-blob, azure-file, s3, web (got %q)", name)
	}
}

func cmdErr(err error) int {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func cmdStat(ctx context.Context, h *vfs.FileHandle) int {
	st, err := h.Stat(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	kind := "file"
	if st.EntType == vfs.EntDir {
		kind = "dir"
	}
	fmt.Printf("type: %s\n", kind)
	if st.Valid&vfs.StatSize != 0 {
		fmt.Printf("size: %d\n", st.Size)
	}
	if st.Valid&vfs.StatContentType != 0 {
		fmt.Printf("content-type: %s\n", st.ContentType)
	}
	if st.Valid&vfs.StatLease != 0 {
		fmt.Printf("lease: %d\n", st.Lease)
	}
	return 0
}

func cmdReaddir(ctx context.Context, h *vfs.FileHandle) int {
	err := h.Readdir(ctx, func(e vfs.DirEntry) error {
		suffix := ""
		if e.Stat.EntType == vfs.EntDir {
			suffix = "/"
		}
		if e.Stat.Valid&vfs.StatSize != 0 {
			fmt.Printf("%s%s\t%d\n", e.Name, suffix, e.Stat.Size)
		} else {
			fmt.Printf("%s%s\n", e.Name, suffix)
		}
		return nil
	})
	return cmdErr(err)
}

// readChunk bounds how much a single cat Read call asks for; the handle's
// backend may return less (respContentLength clamps to what arrived).
const readChunk = 4 * 1024 * 1024

func cmdCat(ctx context.Context, h *vfs.FileHandle) int {
	buf := make([]byte, readChunk)
	var off int64
	for {
		n, err := h.Read(ctx, buf, off)
		if n > 0 {
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				fmt.Fprintln(os.Stderr, werr)
				return 1
			}
			off += int64(n)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if n < len(buf) {
			return 0
		}
	}
}

func cmdPut(ctx context.Context, h *vfs.FileHandle) int {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if _, err := h.Write(ctx, data, 0); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
