package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/richielo/basicFusion/hdf5"
	"github.com/richielo/basicFusion/source"
)

const maxInspectDepth = 20

func (c *cli) inspectCmd() *cobra.Command {
	var noAttrs bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the arrays and attributes of a container.",
		Long: `inspect walks an HDF5 or netCDF file and prints every group and array
with its element type and shape, followed by its attributes.`,
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "=== %s (%s) ===\n", src.Path(), src.Format())
			switch s := src.(type) {
			case *source.H5:
				return inspectH5(out, s, !noAttrs)
			case *source.CDF:
				return inspectCDF(out, s, !noAttrs)
			}
			return fmt.Errorf("cannot inspect %s containers", src.Format())
		},
	}
	cmd.Flags().BoolVar(&noAttrs, "no-attrs", false, "omit attributes")
	return cmd
}

func inspectH5(out io.Writer, s *source.H5, attrs bool) error {
	f := s.File()
	fmt.Fprintf(out, "superblock version %d\n", f.Version())

	byObject := map[string][]hdf5.AttrInfo{}
	if attrs {
		if err := f.WalkAttrs(func(info hdf5.AttrInfo) error {
			byObject[info.ObjectPath] = append(byObject[info.ObjectPath], info)
			return nil
		}); err != nil {
			return err
		}
	}

	return hdf5.Walk(f.Root(), func(p string, obj interface{}, err error) error {
		depth := strings.Count(p, "/")
		if p == "/" {
			depth = 0
		}
		indent := strings.Repeat("  ", depth)
		if depth > maxInspectDepth {
			fmt.Fprintf(out, "%s[max depth reached]\n", indent)
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "%s%s: ERROR %v\n", indent, p, err)
			return nil
		}
		switch o := obj.(type) {
		case *hdf5.Group:
			members, _ := o.Members()
			fmt.Fprintf(out, "%sgroup %s (%d members)\n", indent, p, len(members))
		case *hdf5.Dataset:
			arr, err := s.Open(p)
			if err != nil {
				fmt.Fprintf(out, "%sarray %s %v: %v\n", indent, p, o.Shape(), err)
				break
			}
			fmt.Fprintf(out, "%sarray %s\n", indent, arr.Descriptor())
			arr.Close()
		}
		for _, a := range byObject[p] {
			printAttr(out, indent+"  ", a.Name, a.Value, a.Err)
		}
		return nil
	})
}

func inspectCDF(out io.Writer, s *source.CDF, attrs bool) error {
	vars := s.Variables()
	sort.Strings(vars)
	for _, v := range vars {
		arr, err := s.Open(v)
		if err != nil {
			fmt.Fprintf(out, "array %s: %v\n", v, err)
			continue
		}
		fmt.Fprintf(out, "array %s\n", arr.Descriptor())
		arr.Close()
		if !attrs {
			continue
		}
		for _, name := range s.AttrNames(v) {
			val, err := s.Attr(v, name)
			printAttr(out, "  ", name, val, err)
		}
	}
	if attrs {
		for _, name := range s.AttrNames("") {
			val, err := s.Attr("/", name)
			printAttr(out, "", "@"+name, val, err)
		}
	}
	return nil
}

func printAttr(out io.Writer, indent, name string, val any, err error) {
	if err != nil {
		fmt.Fprintf(out, "%s%s: ERROR %v\n", indent, name, err)
		return
	}
	if s, ok := val.(string); ok {
		// Input Granules is one name per line.
		s = strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", ", ")
		fmt.Fprintf(out, "%s%s = %q\n", indent, name, s)
		return
	}
	fmt.Fprintf(out, "%s%s = %v\n", indent, name, val)
}
