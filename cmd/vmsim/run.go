package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bietkhonhungvandi212/pagevm/internal/mmu"
	"github.com/bietkhonhungvandi212/pagevm/internal/storage/disk"
	"github.com/bietkhonhungvandi212/pagevm/internal/storage/file"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/bietkhonhungvandi212/pagevm/internal/vm"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	heapBase util.Addr = 0x10000000
	mmapBase util.Addr = 0x20000000
)

// RunCommand runs a workload of concurrent processes against one manager and
// prints the manager counters.
type RunCommand struct {
	path      string
	frames    int
	processes int
	pages     int
	filePages int
	rounds    int
	fork      bool
}

// Name implements subcommands.Command.Name.
func (*RunCommand) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*RunCommand) Synopsis() string {
	return "run a paging workload and print statistics"
}

// Usage implements subcommands.Command.Usage.
func (*RunCommand) Usage() string {
	return "run [-config <file>] [-frames N] [-processes N] [-pages N] [-file-pages N] [-rounds N] [-fork]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *RunCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&r.path, "config", "", "YAML file overriding the defaults")
	fs.IntVar(&r.frames, "frames", 0, "override frame_pool_size")
	fs.IntVar(&r.processes, "processes", 4, "number of concurrent address spaces")
	fs.IntVar(&r.pages, "pages", 64, "anonymous pages per process")
	fs.IntVar(&r.filePages, "file-pages", 8, "pages of the shared file each process maps")
	fs.IntVar(&r.rounds, "rounds", 3, "write/verify passes over the anonymous pages")
	fs.BoolVar(&r.fork, "fork", true, "fork every process once and verify the copy")
}

// Execute implements subcommands.Command.Execute.
func (r *RunCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if err := r.execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (r *RunCommand) execute(ctx context.Context) error {
	opts, err := loadOptions(r.path)
	if err != nil {
		return err
	}
	if r.frames > 0 {
		opts.FramePoolSize = r.frames
	}
	log := util.NewLogger(opts.LogLevel, os.Stderr)

	var swapDev disk.Disk
	if opts.SwapPath != "" {
		fd, err := disk.NewFileDisk(opts.SwapPath, disk.Sector(opts.SwapSectors))
		if err != nil {
			return fmt.Errorf("open swap: %w", err)
		}
		defer fd.Close()
		swapDev = fd
	}
	m, err := vm.NewManager(opts, swapDev, log)
	if err != nil {
		return err
	}

	fs := file.NewFS()
	contents := make([]byte, 0, r.filePages*util.PageSize)
	for i := range r.filePages {
		contents = append(contents, util.Pattern(byte(i))...)
	}
	if err := fs.Create("shared.dat", contents); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range r.processes {
		g.Go(func() error {
			return r.process(ctx, m, fs, i, log.WithField("proc", i))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out, err := yaml.Marshal(m.Stats())
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

func seedOf(proc, page, round int) byte {
	return byte(proc*31 + page*7 + round)
}

func (r *RunCommand) process(ctx context.Context, m *vm.Manager, fs *file.FS, proc int, log *logrus.Entry) error {
	as := m.NewAddressSpace(mmu.NewTable())
	defer func() {
		if err := as.Destroy(); err != nil {
			log.WithError(err).Warn("destroy address space")
		}
	}()

	for i := range r.pages {
		va := heapBase + util.Addr(i)*util.PageSize
		if err := as.AllocPage(vm.KindAnon, va, true, nil, nil); err != nil {
			return err
		}
	}

	got := make([]byte, util.PageSize)
	for round := range r.rounds {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range r.pages {
			va := heapBase + util.Addr(i)*util.PageSize
			if err := as.WriteUser(va, util.Pattern(seedOf(proc, i, round))); err != nil {
				return err
			}
		}
		for i := range r.pages {
			va := heapBase + util.Addr(i)*util.PageSize
			if err := as.ReadUser(va, got); err != nil {
				return err
			}
			if !bytes.Equal(got, util.Pattern(seedOf(proc, i, round))) {
				return fmt.Errorf("process %d: page %v corrupted in round %d", proc, va, round)
			}
		}
	}

	if r.filePages > 0 {
		f, err := fs.Open("shared.dat")
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := as.Mmap(mmapBase, uint64(r.filePages)*util.PageSize, false, f, 0); err != nil {
			return err
		}
		for i := range r.filePages {
			if err := as.ReadUser(mmapBase+util.Addr(i)*util.PageSize, got); err != nil {
				return err
			}
			if !bytes.Equal(got, util.Pattern(byte(i))) {
				return fmt.Errorf("process %d: mapped page %d mismatch", proc, i)
			}
		}
	}

	if r.fork && r.pages > 0 && r.rounds > 0 {
		child, err := as.Fork()
		if err != nil {
			return err
		}
		defer child.Destroy()
		if err := child.ReadUser(heapBase, got); err != nil {
			return err
		}
		if !bytes.Equal(got, util.Pattern(seedOf(proc, 0, r.rounds-1))) {
			return fmt.Errorf("process %d: forked page mismatch", proc)
		}
	}
	log.Debug("process done")
	return nil
}
