// Command bloomtool creates, queries, and maintains serialized filter files.
//
// Elements are read one per line; trailing carriage returns are stripped and
// empty lines are skipped. Flags come before positional arguments.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/persistence"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 1
	}

	var err error
	switch cmd := args[0]; cmd {
	case "create":
		err = runCreate(args[1:], stdin)
	case "add":
		err = runAdd(args[1:], stdin)
	case "query", "lookup":
		var present bool
		present, err = runQuery(args[1:], stderr)
		if err == nil && !present {
			return 1
		}
	case "info":
		err = runInfo(args[1:], stdout)
	case "rename":
		err = runRename(args[1:])
	case "merge", "intersect":
		err = runSetOp(cmd, args[1:])
	case "similarity", "intersection":
		err = runSimilarity(args[1:], stdout)
	case "expire":
		err = runExpire(args[1:], stdout)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return 1
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "bloomtool: %v\n", err)
		return 1
	}

	return 0
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: bloomtool COMMAND [OPTIONS] ARGS

Commands:
  create [-variant v] [-p rate] [-n name] [-i file] [-timeout secs] <outfile> <expected-elements>
        build a filter, preloading elements from -i file or stdin
  add [-i file] <filterfile> [element ...]
        add elements from arguments, -i file, or stdin
  query|lookup [-v] <filterfile> <element>
        exit 0 when the element is probably present, 1 when definitely absent
  info [-json] <filterfile>
        print filter parameters and saturation
  rename <filterfile> <new-name>
        replace the name stored in the filter header
  merge [-n name] <infile1> <infile2> <outfile>
        write the union of two compatible plain Bloom filters
  intersect [-n name] <infile1> <infile2> <outfile>
        write the intersection of two compatible plain Bloom filters
  similarity <infile1> <infile2>
        estimate how much two filters' contents overlap
  expire <filterfile>
        clear expired slots of a decaying filter and rewrite it
`)
}

func runCreate(args []string, stdin io.Reader) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	variant := fs.String("variant", "bloom", "filter variant: bloom, counting, decaying or decaying-counting")
	fpRate := fs.Float64("p", 0.01, "target false positive rate")
	name := fs.String("n", "", "filter name stored in the header")
	infile := fs.String("i", "", "read elements from this file instead of stdin")
	timeout := fs.Uint64("timeout", 0, "per-element lifetime in seconds (decaying variants)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 {
		return errors.New("usage: bloomtool create [options] <outfile> <expected-elements>")
	}

	outfile := fs.Arg(0)
	expected, err := strconv.ParseUint(fs.Arg(1), 10, 64)
	if err != nil {
		return fmt.Errorf("expected-elements %q is not a number", fs.Arg(1))
	}

	f, err := newFilter(*variant, expected, *fpRate, *timeout)
	if err != nil {
		return err
	}
	defer f.Close()

	if *name != "" {
		if err := f.SetName(*name); err != nil {
			return err
		}
	}

	if *infile != "" {
		if _, err := addFromFile(f, *infile); err != nil {
			return err
		}
	} else if _, err := addLines(f, stdin); err != nil {
		return err
	}

	return persistence.SaveFilter(outfile, f)
}

func runAdd(args []string, stdin io.Reader) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	infile := fs.String("i", "", "read elements from this file instead of stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return errors.New("usage: bloomtool add [-i file] <filterfile> [element ...]")
	}

	path := fs.Arg(0)
	f, err := persistence.LoadFilter(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch {
	case *infile != "":
		if _, err := addFromFile(f, *infile); err != nil {
			return err
		}
	case fs.NArg() > 1:
		for _, el := range fs.Args()[1:] {
			f.AddString(el)
		}
	default:
		if _, err := addLines(f, stdin); err != nil {
			return err
		}
	}

	return persistence.SaveFilter(path, f)
}

func runQuery(args []string, stderr io.Writer) (bool, error) {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "report the verdict on stderr")
	if err := fs.Parse(args); err != nil {
		return false, err
	}

	if fs.NArg() < 2 {
		return false, errors.New("usage: bloomtool query [-v] <filterfile> <element>")
	}

	path, element := fs.Arg(0), fs.Arg(1)

	f, err := persistence.LoadFilter(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	present := f.LookupString(element)
	if *verbose {
		if present {
			fmt.Fprintf(stderr, "%s is in filter %s\n", element, path)
		} else {
			fmt.Fprintf(stderr, "%s is NOT in filter %s\n", element, path)
		}
	}

	return present, nil
}

func runRename(args []string) error {
	fs := flag.NewFlagSet("rename", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 {
		return errors.New("usage: bloomtool rename <filterfile> <new-name>")
	}

	path, newName := fs.Arg(0), fs.Arg(1)

	f, err := persistence.LoadFilter(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SetName(newName); err != nil {
		return err
	}

	return persistence.SaveFilter(path, f)
}

func runSetOp(op string, args []string) error {
	fs := flag.NewFlagSet(op, flag.ContinueOnError)
	name := fs.String("n", "", "name stored in the output filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 3 {
		return fmt.Errorf("usage: bloomtool %s [-n name] <infile1> <infile2> <outfile>", op)
	}

	a, err := loadBloom(fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := loadBloom(fs.Arg(1))
	if err != nil {
		return err
	}
	defer b.Close()

	switch op {
	case "merge":
		err = a.MergeInPlace(b)
	case "intersect":
		err = a.IntersectInPlace(b)
	}
	if err != nil {
		return err
	}

	if *name != "" {
		if err := a.SetName(*name); err != nil {
			return err
		}
	}

	return persistence.SaveFilter(fs.Arg(2), a)
}

func runSimilarity(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("similarity", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 {
		return errors.New("usage: bloomtool similarity <infile1> <infile2>")
	}

	a, err := loadBloom(fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := loadBloom(fs.Arg(1))
	if err != nil {
		return err
	}
	defer b.Close()

	pct, err := bloomgo.EstimateSimilarity(a, b)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "similarity of %s and %s: %.2f%%\n", fs.Arg(0), fs.Arg(1), pct)
	return nil
}

func runExpire(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("expire", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return errors.New("usage: bloomtool expire <filterfile>")
	}

	path := fs.Arg(0)

	f, err := persistence.LoadFilter(path)
	if err != nil {
		return err
	}
	defer f.Close()

	expirer, ok := f.(interface{ ClearExpired() uint64 })
	if !ok {
		return fmt.Errorf("%s holds a %s filter, expire needs a decaying variant", path, f.Variant())
	}

	reaped := expirer.ClearExpired()
	if err := persistence.SaveFilter(path, f); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "reaped %d expired slots from %s\n", reaped, path)
	return nil
}
