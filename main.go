package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dot5enko/blockpack/compression"
	"github.com/dot5enko/blockpack/manager"
	"github.com/dot5enko/blockpack/manager/cache"
	"github.com/dot5enko/blockpack/schema"
	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: blockpack <command> [flags] files...

commands:
  pack   compress files into block containers
  ls     summarize containers
  dump   list every block of a container
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "pack":
		err = runPack(ctx, os.Args[2:])
	case "ls":
		err = runList(os.Args[2:], false)
	case "dump":
		err = runList(os.Args[2:], true)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

type packOptions struct {
	cfg    manager.WriterConfig
	outDir string
	jobs   int
}

func runPack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)

	method := fs.String("method", "zlib", "compression method: none, zlib, lz4, zstd")
	level := fs.String("level", "balanced", "compression level: fastest, balanced, best")
	blockSize := fs.Int("block", manager.DefaultMaxBlockSize, "raw bytes per block")
	chunkSize := fs.Int("chunk", manager.DefaultChunkSize, "chunk buffer size")
	wide := fs.Bool("wide", false, "64-bit block headers")
	outDir := fs.String("o", "", "output directory, defaults to the input's directory")
	jobs := fs.Int("j", 4, "files packed in parallel")
	verbose := fs.Bool("v", false, "log every block")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return errors.New("no input files")
	}

	opts := packOptions{
		cfg:    manager.DefaultWriterConfig(),
		outDir: *outDir,
		jobs:   max(*jobs, 1),
	}

	var err error
	if opts.cfg.Method, err = compression.ParseMethod(*method); err != nil {
		return err
	}
	if opts.cfg.Level, err = compression.ParseLevel(*level); err != nil {
		return err
	}
	opts.cfg.MaxBlockSize = *blockSize
	opts.cfg.ChunkSize = *chunkSize
	opts.cfg.Verbose = *verbose
	if *wide {
		opts.cfg.HeaderWidth = schema.Width64
	}
	if err := opts.cfg.Validate(); err != nil {
		return err
	}
	if opts.jobs > cache.MaxBuffers {
		return errors.Errorf("at most %d parallel jobs", cache.MaxBuffers)
	}

	return packFiles(ctx, opts, fs.Args())
}

// packFiles packs every input into its own container. The chunk pool has one
// buffer per job so the number of writers alive at once is bounded by it too.
func packFiles(ctx context.Context, opts packOptions, inputs []string) error {
	pool := cache.NewFixedSizeBufferPool(opts.jobs, opts.cfg.ChunkSize)

	before := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)

	for _, input := range inputs {
		g.Go(func() error {
			output := containerPath(input, opts.outDir)
			entries, err := packFile(ctx, input, output, opts.cfg, pool)
			if err != nil {
				return errors.Wrapf(err, "pack %s", input)
			}

			if opts.cfg.Verbose {
				log.Printf(" >> %s -> %s, %d blocks", input, output, len(entries))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	color.Green(" >> packed %d files in %s", len(inputs), time.Since(before))
	return nil
}

func containerPath(input, outDir string) string {
	if outDir == "" {
		return input + ".blkp"
	}
	return filepath.Join(outDir, filepath.Base(input)+".blkp")
}

// packFile cuts input into blocks of cfg.MaxBlockSize raw bytes.
func packFile(ctx context.Context, input, output string, cfg manager.WriterConfig, pool *cache.FixedSizeBufferPool) ([]schema.IndexEntry, error) {
	in, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	w, err := manager.Create(output, cfg, pool)
	if err != nil {
		return nil, err
	}
	if err := packInto(ctx, in, w, cfg.MaxBlockSize); err != nil {
		return nil, err
	}
	return w.Blocks(), nil
}

// packInto writes in as blocks of blockSize raw bytes and closes w. On
// failure the error of closing w is joined to the one that stopped the pack.
func packInto(ctx context.Context, in io.Reader, w *manager.Writer, blockSize int) error {
	buf := make([]byte, blockSize)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, w.Close())
		}

		n, readErr := io.ReadFull(in, buf)
		if n > 0 {
			if _, err := w.WriteBlock(buf[:n]); err != nil {
				return errors.Join(err, w.Close())
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return errors.Join(readErr, w.Close())
		}
	}
	return w.Close()
}

func runList(args []string, perBlock bool) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	debug := fs.Bool("debug", false, "dump decoded header and footer records")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return errors.New("no containers given")
	}

	for _, path := range fs.Args() {
		idx, err := manager.OpenIndex(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}

		if *debug {
			spew.Dump(idx.Header, idx.Footer)
		}

		printSummary(os.Stdout, path, idx)
		if perBlock {
			printBlocks(os.Stdout, idx)
		}
	}
	return nil
}

func printSummary(out io.Writer, path string, idx *manager.Index) {
	raw, compressed := idx.TotalRaw(), idx.TotalCompressed()

	fmt.Fprintf(out, "%s: %s/%s, %d blocks, %d -> %d bytes (%.2f%%)\n",
		path, idx.Method(), compression.Level(idx.Header.Level), len(idx.Entries), raw, compressed, ratio(raw, compressed))
}

func printBlocks(out io.Writer, idx *manager.Index) {
	for i, entry := range idx.Entries {
		fmt.Fprintf(out, "  %4d %s @%-10d %10d -> %-10d %6.2f%%\n",
			i, entry.Uid, entry.Start, entry.RawSize, entry.CompressedSize, ratio(entry.RawSize, entry.CompressedSize))
	}
}

func ratio(raw, compressed uint64) float64 {
	if raw == 0 {
		return 0
	}
	return float64(compressed) / float64(raw) * 100
}
