package decode

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/nps/cmd/util"
	"github.com/ValentinKolb/nps/lib/byteorder"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/spf13/cobra"
	"io"
	"strconv"
)

// v0HeaderSize is the size of the short header of old clients: id and length
const v0HeaderSize = 4

var (
	// DecodeCmd decodes hex dumps of NPS messages
	DecodeCmd = &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decodes a hex dump of an NPS message",
		Long: `Decodes a hex dump of an NPS message and prints the header fields.
Messages of known types are printed as json. Dumps shorter than 12 bytes
are read as v0 messages with a 4 byte header (id, length). Without an
argument the dump is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dump string
			if len(args) == 1 {
				dump = args[0]
			} else {
				in, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				dump = string(in)
			}

			data, err := util.ParseHex(dump)
			if err != nil {
				return fmt.Errorf("invalid hex dump: %w", err)
			}
			return Decode(cmd.OutOrStdout(), data)
		},
	}
)

// Decode writes the header table and, for known message types, the decoded
// message of data to w.
func Decode(w io.Writer, data []byte) error {
	if len(data) < v0HeaderSize {
		return fmt.Errorf("%w: %d bytes are too short for any header", serialize.ErrTruncatedBuffer, len(data))
	}

	table := util.NewTable(w, "Field", "Value")
	id := message.Opcode(byteorder.Uint16(data))
	length := byteorder.Uint16(data[2:])

	// v0: id and length only
	if len(data) < serialize.HeaderSize {
		table.Append([]string{"Format", "v0"})
		table.Append([]string{"ID", fmt.Sprintf("%#04x (%s)", uint16(id), id)})
		table.Append([]string{"Length", strconv.Itoa(int(length))})
		table.Append([]string{"Payload", fmt.Sprintf("%x", data[v0HeaderSize:])})
		table.Render()
		return nil
	}

	h := serialize.NewHeader(data)
	e, decodeErr := message.Decode(data)

	table.Append([]string{"Format", "v1"})
	table.Append([]string{"ID", fmt.Sprintf("%#04x (%s)", h.ID(), id)})
	table.Append([]string{"Length", fmt.Sprintf("%d (%d bytes captured)", h.Length(), len(data))})
	table.Append([]string{"Version", strconv.Itoa(int(h.Version()))})
	table.Append([]string{"Reserved", strconv.Itoa(int(h.Reserved()))})
	table.Append([]string{"Checksum", checksumInfo(e, data, h.Checksum())})
	table.Render()

	if decodeErr != nil {
		return decodeErr
	}
	if _, known := message.New(h.ID()); !known {
		fmt.Fprintf(w, "\nunknown message type, payload:\n%x\n", data[serialize.HeaderSize:h.Length()])
		return nil
	}

	out, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", out)
	return nil
}

// checksumInfo tells a generated checksum from a sequence number
func checksumInfo(e serialize.Entity, data []byte, sum uint32) string {
	if e != nil && serialize.Verify(e, data) == nil {
		return fmt.Sprintf("%#08x (valid checksum)", sum)
	}
	return fmt.Sprintf("%#08x (sequence number %d)", sum, sum)
}
