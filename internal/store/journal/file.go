package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/models"
)

const (
	// journal file format constants
	journalMagic   = "TLJRN001"
	journalVersion = uint32(1)
	headerSize     = 16 // 8 bytes magic + 4 bytes version + 4 bytes reserved

	recordOverhead = 32               // length + sequence + type + reserved + timestamp + crc
	maxRecordSize  = 10 * 1024 * 1024 // 10MB

	// record type values
	recordAudit uint8 = 1
)

// entry is a record's location in the journal file
type entry struct {
	sequence  int64
	offset    int64
	length    int64
	timestamp int64
}

func writeHeader(w io.Writer) error {
	header := make([]byte, headerSize)
	copy(header[0:8], journalMagic)
	binary.LittleEndian.PutUint32(header[8:12], journalVersion)
	binary.LittleEndian.PutUint32(header[12:16], 0)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

func readHeader(r io.Reader) error {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if magic := string(header[0:8]); magic != journalMagic {
		return fmt.Errorf("invalid magic: %q", magic)
	}

	if version := binary.LittleEndian.Uint32(header[8:12]); version != journalVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}
	return nil
}

// buildRecord constructs a binary record with CRC64
//
// Record format (total: 32 + payload_len bytes):
// - Length (4 bytes, uint32) - total record length including this field
// - Sequence (8 bytes, int64) - audit sequence number
// - Type (1 byte, uint8) - recordAudit
// - Reserved (3 bytes)
// - Timestamp (8 bytes, int64) - Unix nanoseconds of the audit record
// - Payload (variable) - JSON encoded models.AuditRecord
// - CRC64 (8 bytes, uint64) - CRC64-NVME checksum of all preceding fields excluding length
func buildRecord(rec *models.AuditRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit record: %w", err)
	}
	if len(payload)+recordOverhead > maxRecordSize {
		return nil, fmt.Errorf("audit record %d exceeds %d bytes", rec.Sequence, maxRecordSize)
	}

	//nolint:gosec // bounded by maxRecordSize above
	totalLength := uint32(recordOverhead + len(payload))
	buf := bytes.NewBuffer(make([]byte, 0, totalLength))

	// binary.Write to bytes.Buffer never errors
	_ = binary.Write(buf, binary.LittleEndian, totalLength)
	_ = binary.Write(buf, binary.LittleEndian, rec.Sequence)
	buf.WriteByte(recordAudit)
	buf.Write([]byte{0, 0, 0})
	_ = binary.Write(buf, binary.LittleEndian, rec.Timestamp.UnixNano())
	buf.Write(payload)

	crc := computeCRC64(buf.Bytes()[4:])
	_ = binary.Write(buf, binary.LittleEndian, crc)

	return buf.Bytes(), nil
}

// computeCRC64 computes CRC64-NVME checksum
func computeCRC64(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

// decodeRecord validates a full record (length field included) and
// unmarshals its payload.
func decodeRecord(data []byte) (*models.AuditRecord, error) {
	if len(data) < recordOverhead {
		return nil, fmt.Errorf("short record: %d bytes", len(data))
	}

	storedCRC := binary.LittleEndian.Uint64(data[len(data)-8:])
	if computed := computeCRC64(data[4 : len(data)-8]); storedCRC != computed {
		return nil, fmt.Errorf("CRC64 mismatch: stored=%x computed=%x", storedCRC, computed)
	}

	//nolint:gosec // sequence is always positive
	sequence := int64(binary.LittleEndian.Uint64(data[4:12]))
	if data[12] != recordAudit {
		return nil, fmt.Errorf("unknown record type %d", data[12])
	}

	var rec models.AuditRecord
	if err := json.Unmarshal(data[24:len(data)-8], &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
	}
	if rec.Sequence != sequence {
		return nil, fmt.Errorf("sequence mismatch: header=%d payload=%d", sequence, rec.Sequence)
	}
	return &rec, nil
}

// readRecordAt reads and validates the record at offset
func readRecordAt(file *os.File, e entry) (*models.AuditRecord, error) {
	data := make([]byte, e.length)
	if _, err := file.ReadAt(data, e.offset); err != nil {
		return nil, fmt.Errorf("failed to read record %d: %w", e.sequence, err)
	}
	return decodeRecord(data)
}

// scan reads every valid record from r, which must be positioned just past
// the header, and returns their entries. valid is the offset just past the
// last good record; anything after it is torn or corrupt.
func scan(r io.Reader, lastSeq int64) (entries []entry, valid int64, err error) {
	offset := int64(headerSize)
	lengthBuf := make([]byte, 4)

	for {
		if _, err := io.ReadFull(r, lengthBuf); err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Int64("offset", offset).Msg("Torn record length, truncating journal")
			}
			return entries, offset, nil
		}

		length := binary.LittleEndian.Uint32(lengthBuf)
		if length < recordOverhead || length > maxRecordSize {
			log.Warn().Uint32("length", length).Int64("offset", offset).Msg("Invalid record length, truncating journal")
			return entries, offset, nil
		}

		data := make([]byte, length)
		copy(data, lengthBuf)
		if _, err := io.ReadFull(r, data[4:]); err != nil {
			log.Warn().Err(err).Int64("offset", offset).Msg("Failed to read record data, truncating journal")
			return entries, offset, nil
		}

		rec, err := decodeRecord(data)
		if err != nil {
			log.Warn().Err(err).Int64("offset", offset).Msg("Corrupt record, truncating journal")
			return entries, offset, nil
		}

		if rec.Sequence != lastSeq+1 {
			log.Warn().
				Int64("sequence", rec.Sequence).
				Int64("expected", lastSeq+1).
				Int64("offset", offset).
				Msg("Sequence gap, truncating journal")
			return entries, offset, nil
		}

		entries = append(entries, entry{
			sequence:  rec.Sequence,
			offset:    offset,
			length:    int64(length),
			timestamp: rec.Timestamp.UnixNano(),
		})
		lastSeq = rec.Sequence
		offset += int64(length)
	}
}
