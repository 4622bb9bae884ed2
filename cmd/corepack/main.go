// Command corepack is a single binary exposing the core's primitives
// as standalone subcommands, one small operation per invocation in the
// style of the retrieved corpus's many single-purpose cmd/ binaries.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/flashpack/corepack"
	"github.com/flashpack/corepack/bloom"
	"github.com/flashpack/corepack/midx"
	"github.com/flashpack/corepack/oid"
	"github.com/flashpack/corepack/packidx"
	"github.com/flashpack/corepack/varint"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: corepack <vint|vuint|bloom-add|bloom-test|idx-build|midx-merge> ...")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "vint":
		err = runVint(os.Args[2:])
	case "vuint":
		err = runVuint(os.Args[2:])
	case "bloom-add":
		err = runBloomAdd(os.Args[2:])
	case "bloom-test":
		err = runBloomTest(os.Args[2:])
	case "idx-build":
		err = runIdxBuild(os.Args[2:])
	case "midx-merge":
		err = runMidxMerge(os.Args[2:])
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "corepack: %v\n", err)
		os.Exit(1)
	}
}

func runVint(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("vint <signed-integer>")
	}
	v, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(varint.EncodeInt(nil, v)))
	return nil
}

func runVuint(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("vuint <non-negative-integer>")
	}
	v, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	enc, err := varint.EncodeUint(nil, v)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(enc))
	return nil
}

func parseOIDHex(s string) (oid.OID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return oid.New(b)
}

func runBloomAdd(args []string) error {
	fs := flag.NewFlagSet("bloom-add", flag.ContinueOnError)
	nbits := fs.Uint("nbits", 20, "log2 of the bit table size")
	k := fs.Int("k", 4, "number of sub-hashes per oid, 4 or 5")
	out := fs.String("out", "", "output bloom table path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("bloom-add: -out is required")
	}

	var shas []byte
	for _, hexOID := range fs.Args() {
		o, err := parseOIDHex(hexOID)
		if err != nil {
			return fmt.Errorf("bloom-add: %q: %w", hexOID, err)
		}
		shas = append(shas, o.Bytes()...)
	}

	table := make([]byte, bloom.HeaderLen+1<<*nbits)
	n, err := bloom.Add(table, shas, *nbits, *k)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, table, 0o644); err != nil {
		return err
	}
	fmt.Printf("added %d oids to %s\n", n, *out)
	return nil
}

func runBloomTest(args []string) error {
	fs := flag.NewFlagSet("bloom-test", flag.ContinueOnError)
	nbits := fs.Uint("nbits", 20, "log2 of the bit table size")
	k := fs.Int("k", 4, "number of sub-hashes per oid, 4 or 5")
	in := fs.String("in", "", "input bloom table path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || fs.NArg() != 1 {
		return fmt.Errorf("bloom-test: -in <table> <oid-hex>")
	}

	table, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	o, err := parseOIDHex(fs.Arg(0))
	if err != nil {
		return err
	}

	present, steps, err := bloom.Contains(table, o.Bytes(), *nbits, *k)
	if err != nil {
		return err
	}
	fmt.Printf("present=%v steps=%d\n", present, steps)
	return nil
}

// idx-build reads "oidhex crc offset" triples from stdin-style args
// (one "oidhex,crc,offset" token per positional argument, for a CLI
// that needs no shell pipe plumbing) and writes an IDXv2 file.
func runIdxBuild(args []string) error {
	fs := flag.NewFlagSet("idx-build", flag.ContinueOnError)
	out := fs.String("out", "", "output idx path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("idx-build: -out is required")
	}

	var buckets packidx.Buckets
	total := 0
	for _, tok := range fs.Args() {
		parts := strings.Split(tok, ",")
		if len(parts) != 3 {
			return fmt.Errorf("idx-build: bad entry %q, want oidhex,crc,offset", tok)
		}
		o, err := parseOIDHex(parts[0])
		if err != nil {
			return err
		}
		crc, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return err
		}
		offset, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return err
		}
		buckets[o.Bytes()[0]] = append(buckets[o.Bytes()[0]], packidx.Entry{
			OID: o, CRC: uint32(crc), Offset: offset,
		})
		total++
	}

	fmap := make([]byte, packidx.Size(total))
	count, err := packidx.Write(*out, fmap, buckets, total)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, fmap, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %d entries to %s\n", count, *out)
	return nil
}

// midx-merge merges previously written IDXv2 files into one MIDX.
// Each input contributes its oid array, starting at the name base
// given by its position among the arguments (so names are simply the
// input's ordinal index, an ordering handle rather than a byte
// offset into any particular file).
func runMidxMerge(args []string) error {
	fs := flag.NewFlagSet("midx-merge", flag.ContinueOnError)
	bits := fs.Uint("bits", 8, "fan-out bits")
	out := fs.String("out", "", "output midx path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || fs.NArg() == 0 {
		return fmt.Errorf("midx-merge: -out <path> <idx-file>...")
	}

	var inputs []midx.Input
	total := 0
	for i, path := range fs.Args() {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if len(b) < packidx.HeaderLen+4*packidx.FanEntries {
			return fmt.Errorf("midx-merge: %s: too small to be an idx file", path)
		}
		count := int(binary.BigEndian.Uint32(b[packidx.HeaderLen+4*(packidx.FanEntries-1):]))
		inputs = append(inputs, midx.Input{
			Map:       b,
			Len:       count,
			ShaOffset: packidx.HeaderLen + 4*packidx.FanEntries,
			NameBase:  uint32(i),
		})
		total += count
	}

	fanLen := 1 << *bits
	size := midx.HeaderLen + 4*fanLen + oid.Size*total + 4*total
	fmap := make([]byte, size)

	count, err := midx.Merge(fmap, *bits, total, inputs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, fmap, 0o644); err != nil {
		return err
	}
	if corepack.StderrIsTTY() {
		fmt.Fprintln(os.Stderr)
	}
	fmt.Printf("merged %d oids into %s\n", count, *out)
	return nil
}
