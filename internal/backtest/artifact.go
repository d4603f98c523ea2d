package backtest

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// artifactMagic and artifactVersion identify the persisted Result format
// (§6): a 4-byte magic, a 2-byte version, then a gzip-compressed gob
// encoding of Result. gob is used rather than a schema'd format like
// protobuf because Result is internal to this module with no
// cross-language consumer; see the design notes for the full rationale.
var artifactMagic = [4]byte{'B', 'T', 'R', '1'}

const artifactVersion uint16 = 1

// EncodeResult serializes result into the persisted artifact format.
func EncodeResult(result *Result) ([]byte, error) {
	var payload bytes.Buffer
	gz := gzip.NewWriter(&payload)
	if err := gob.NewEncoder(gz).Encode(result); err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}

	var out bytes.Buffer
	out.Write(artifactMagic[:])
	binary.Write(&out, binary.BigEndian, artifactVersion)
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// DecodeResult parses the persisted artifact format back into a Result.
// A magic/version mismatch or truncated payload is reported as
// KindArtifactCorrupt; per §7 this is fatal to the caller.
func DecodeResult(data []byte) (*Result, error) {
	if len(data) < 6 {
		return nil, NewRunError(KindArtifactCorrupt, "artifact shorter than header", nil)
	}
	if !bytes.Equal(data[:4], artifactMagic[:]) {
		return nil, NewRunError(KindArtifactCorrupt, "bad magic bytes", nil)
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version != artifactVersion {
		return nil, NewRunError(KindArtifactCorrupt, fmt.Sprintf("unsupported artifact version %d", version), nil)
	}

	gz, err := gzip.NewReader(bytes.NewReader(data[6:]))
	if err != nil {
		return nil, NewRunError(KindArtifactCorrupt, "opening gzip stream", err)
	}
	defer gz.Close()

	decompressed, err := io.ReadAll(gz)
	if err != nil {
		return nil, NewRunError(KindArtifactCorrupt, "reading gzip stream", err)
	}

	var result Result
	if err := gob.NewDecoder(bytes.NewReader(decompressed)).Decode(&result); err != nil {
		return nil, NewRunError(KindArtifactCorrupt, "decoding gob payload", err)
	}
	return &result, nil
}
