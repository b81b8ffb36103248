package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
	"github.com/spf13/cobra"
)

var (
	decodeEncoding string
	decodeColumns  int
)

var decodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "Decode a payload file the way the inspector shows it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		enc, err := encodingregistry.Parse(decodeEncoding)
		if err != nil {
			return err
		}
		return writeDecoded(cmd.OutOrStdout(), enc, data, decodeColumns)
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeEncoding, "encoding", "e", "application/octet-stream", "encoding label, optionally with ;schema")
	decodeCmd.Flags().IntVar(&decodeColumns, "columns", 16, "bytes per hex view row")
	rootCmd.AddCommand(decodeCmd)
}

func writeDecoded(w io.Writer, enc ds.Encoding, data []byte, columns int) error {
	rep := payloaddecoder.Decode(enc, data)
	summary, err := payloaddecoder.Summary(enc, data)
	if err != nil {
		summary = err.Error()
	}
	fmt.Fprintf(w, "encoding: %s\nkind: %s\nsize: %d\nsummary: %s\n\n", encodingregistry.Label(enc), rep.Kind(), len(data), summary)

	switch r := rep.(type) {
	case payloaddecoder.JSON:
		fmt.Fprintln(w, r.Pretty)
	case payloaddecoder.Text:
		fmt.Fprintln(w, r.Content)
	case payloaddecoder.Image:
		fmt.Fprintf(w, "%dx%d pixels\n", r.Width, r.Height)
	case payloaddecoder.Binary:
		hv := payloaddecoder.NewHexView(data, columns)
		for page := range hv.Pages() {
			fmt.Fprint(w, hv.Render(page))
		}
	case payloaddecoder.Error:
		return fmt.Errorf("decode: %s", r.Message)
	}
	return nil
}
