package r30x

import (
	"errors"
	"fmt"
	"io"

	binarypack "github.com/canhlinh/go-binary-pack"
)

// wire framing: start code, 4-byte module address, packet id, payload length
// (payload + 2 checksum bytes), payload, 16-bit checksum over packet id,
// length and payload bytes.
const (
	startCode     = 0xEF01
	moduleAddress = 0xFFFFFFFF

	pidCommand = 0x01
	pidAck     = 0x07

	headerSize   = 9
	checksumSize = 2
)

var errBadFrame = errors.New("malformed frame")

func newBP() *binarypack.BinaryPack {
	return &binarypack.BinaryPack{}
}

// fieldSize maps pack format codes to their byte width.
var fieldSize = map[string]int{"B": 1, "H": 2, "I": 4}

// The module is big-endian on the wire; the pack library is little-endian
// only. packBE and unpackBE reverse each multi-byte field in place.
func packBE(format []string, values []interface{}) ([]byte, error) {
	packed, err := newBP().Pack(format, values)
	if err != nil {
		return nil, err
	}
	reverseFields(packed, format)
	return packed, nil
}

func unpackBE(format []string, data []byte) ([]interface{}, error) {
	swapped := make([]byte, len(data))
	copy(swapped, data)
	reverseFields(swapped, format)
	return newBP().UnPack(format, swapped)
}

func reverseFields(b []byte, format []string) {
	var offset int
	for _, code := range format {
		size := fieldSize[code]
		for i, j := offset, offset+size-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		offset += size
	}
}

func checksum(b []byte) int {
	var sum int
	for _, v := range b {
		sum += int(v)
	}
	return sum & 0xFFFF
}

func buildFrame(pid byte, payload []byte) ([]byte, error) {
	frame, err := packBE(
		[]string{"H", "I", "B", "H"},
		[]interface{}{startCode, moduleAddress, int(pid), len(payload) + checksumSize},
	)
	if err != nil {
		return nil, err
	}
	frame = append(frame, payload...)

	sum, err := packBE([]string{"H"}, []interface{}{checksum(frame[6:])})
	if err != nil {
		return nil, err
	}
	return append(frame, sum...), nil
}

func parseFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	fields, err := unpackBE([]string{"H", "I", "B", "H"}, header)
	if err != nil {
		return 0, nil, err
	}
	if fields[0].(int) != startCode {
		return 0, nil, fmt.Errorf("%w: bad start code %#x", errBadFrame, fields[0])
	}
	pid := byte(fields[2].(int))
	length := fields[3].(int)
	if length < checksumSize {
		return 0, nil, fmt.Errorf("%w: bad length %d", errBadFrame, length)
	}

	rest := make([]byte, length)
	if _, err = io.ReadFull(r, rest); err != nil {
		return 0, nil, err
	}
	payload := rest[:length-checksumSize]

	sum, err := unpackBE([]string{"H"}, rest[length-checksumSize:])
	if err != nil {
		return 0, nil, err
	}
	if want := checksum(append(header[6:], payload...)); sum[0].(int) != want {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", errBadFrame)
	}
	return pid, payload, nil
}
