// Command diskimg drives the diskimage library end to end: list a FAT
// volume, extract a file, dump the extended JSON form, build a fresh image
// from a host directory, or print a sorted manifest of every file path. This is the
// explicitly out-of-scope "command-line parsing" collaborator spec.md
// names (a thin exerciser, not part of the engine itself).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pcediskimg/diskimage/diskjson"
	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/present"
	"github.com/pcediskimg/diskimage/progress"
	"github.com/pcediskimg/diskimage/warn"
	"github.com/spf13/pflag"
)

func main() {
	flagSet := pflag.NewFlagSet("diskimg", pflag.ExitOnError)
	RegisterPflags(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := flagSet.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: diskimg [flags] <ls|cat|json|build|dump> ...")
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "ls":
		err = cmdLs(args[1:])
	case "cat":
		err = cmdCat(args[1:])
	case "json":
		err = cmdJSON(args[1:])
	case "build":
		err = cmdBuild(args[1:])
	case "dump":
		err = cmdDump(args[1:])
	default:
		err = fmt.Errorf("unknown subcommand %q", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "diskimg: %v\n", err)
		os.Exit(1)
	}
}

// cmdLs prints a DOS-style directory listing of the image's first volume.
func cmdLs(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: diskimg ls <image>")
	}
	di, err := buildTables(args[0])
	if err != nil {
		return err
	}
	if !di.Warnings.Empty() {
		for _, w := range di.Warnings.Items() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
	}
	return di.List(os.Stdout)
}

// cmdCat writes one file's content, named by its full in-volume path
// (e.g. \SUBDIR\FILE.TXT), to stdout.
func cmdCat(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: diskimg cat <image> <path>")
	}
	di, err := buildTables(args[0])
	if err != nil {
		return err
	}
	want := args[1]
	for _, f := range di.Files() {
		if f.IsDir() {
			continue
		}
		if f.Path+f.Name != want {
			continue
		}
		data, err := di.ExtractFile(f)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	return fmt.Errorf("no such file: %s", want)
}

// cmdJSON prints the extended JSON document form of the image.
func cmdJSON(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: diskimg json <image>")
	}
	di, err := loadImage(args[0])
	if err != nil {
		return err
	}
	if _, _, err := di.BuildTables(); err != nil {
		return err
	}

	doc := di.GetJSON(diskjson.ImageInfo{Name: args[0]})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// cmdDump prints the raw manifest of every file in the image, one path per
// line, sorted (spec §4.6's flat-manifest view).
func cmdDump(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: diskimg dump <image>")
	}
	di, err := buildTables(args[0])
	if err != nil {
		return err
	}
	for _, path := range present.Manifest(di.Files()) {
		fmt.Fprintln(os.Stdout, path)
	}
	return nil
}

// cmdBuild packs a host directory into a fresh volume and writes it to
// out (spec §4.5), reporting throughput while the host files are read.
func cmdBuild(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: diskimg build <srcDir> <out.img>")
	}
	srcDir, out := args[0], args[1]

	total, err := dirByteTotal(srcDir)
	if err != nil {
		return err
	}

	progress.Reset()
	reporter := &progress.Reporter{}
	reporter.SetStatus("reading")
	reporter.SetTotal(total)
	ctx, cancel := context.WithCancel(context.Background())
	go reporter.Report(ctx)

	tree, err := readTree(srcDir)
	cancel()
	fmt.Println()
	if err != nil {
		return err
	}

	w := &warn.List{}
	buf, _, _, err := fat.Build(tree, TargetKB(), w)
	if err != nil {
		return err
	}
	for _, item := range w.Items() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", item)
	}

	return os.WriteFile(out, buf, 0o644)
}

// dirByteTotal sums the sizes of every regular file under dir, without
// reading their contents, so Reporter can show a percentage during the
// subsequent readTree pass.
func dirByteTotal(dir string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}
