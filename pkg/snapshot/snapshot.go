// Package snapshot writes and reads complete world states.
//
// File format:
//   - Magic (4 bytes): "TLSN"
//   - Version (4 bytes, little-endian)
//   - Tick (8 bytes)
//   - Height, Width (4 bytes each)
//   - BotCount (8 bytes)
//   - NextColony, NextGenome (8 bytes each)
//   - Body (zstd compressed):
//   - Rules (uvarint length + JSON)
//   - Sun, then Mineral levels, row-major (varint each)
//   - Genome table: uvarint count, then per genome uvarint id and
//     uvarint length + wire text
//   - Per bot: varint x, y; uvarint colony, genome id; alive byte;
//     bot.State in little-endian binary form
package snapshot

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/world"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidSnapshot is returned for corrupt or truncated files.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrVersionMismatch is returned for files written by another format version.
	ErrVersionMismatch = errors.New("snapshot version mismatch")
)

// Version is the current file format version.
const Version uint32 = 1

var magic = []byte{'T', 'L', 'S', 'N'}

const headerSize = 4 + 8 + 4 + 4 + 8 + 8 + 8

// Decoding limits.
const (
	maxCells     = 1 << 26
	maxRulesSize = 1 << 16
	maxTextSize  = 1 << 20
)

// Header is the uncompressed prefix of a snapshot file.
type Header struct {
	Version    uint32
	Tick       uint64
	Height     uint32
	Width      uint32
	Bots       uint64
	NextColony uint64
	NextGenome uint64
}

func (h *Header) marshal() []byte {
	buf := make([]byte, headerSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], h.Version)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.Tick)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], h.Height)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Width)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.Bots)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], h.NextColony)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], h.NextGenome)
	return buf
}

func (h *Header) unmarshal(buf []byte) {
	off := 0
	h.Version = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Tick = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.Height = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Width = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Bots = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.NextColony = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.NextGenome = binary.LittleEndian.Uint64(buf[off:])
}

// Write stores d at path. The file is written beside path and renamed into
// place, so readers never observe a partial snapshot.
func Write(path string, d world.Dump) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := write(file, d); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func write(file io.Writer, d world.Dump) error {
	if d.Height <= 0 || d.Width <= 0 || len(d.Sun) != d.Height*d.Width || len(d.Mineral) != d.Height*d.Width {
		return fmt.Errorf("%w: resource maps do not match %dx%d", ErrInvalidSnapshot, d.Width, d.Height)
	}
	header := Header{
		Version:    Version,
		Tick:       d.Tick,
		Height:     uint32(d.Height),
		Width:      uint32(d.Width),
		Bots:       uint64(len(d.Bots)),
		NextColony: d.NextColony,
		NextGenome: d.NextGenome,
	}
	if _, err := file.Write(magic); err != nil {
		return err
	}
	if _, err := file.Write(header.marshal()); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("init zstd writer: %w", err)
	}
	bw := &writer{w: bufio.NewWriter(enc)}

	rules, err := json.Marshal(d.Rules)
	if err != nil {
		enc.Close()
		return fmt.Errorf("encode rules: %w", err)
	}
	bw.bytes(rules)

	for _, v := range d.Sun {
		bw.varint(v)
	}
	for _, v := range d.Mineral {
		bw.varint(v)
	}

	var ids []uint64
	table := make(map[uint64]*genome.Genome)
	for _, r := range d.Bots {
		if r.Genome == nil {
			enc.Close()
			return fmt.Errorf("%w: bot at %v has no genome", ErrInvalidSnapshot, r.Pos)
		}
		if _, ok := table[r.Genome.ID()]; !ok {
			table[r.Genome.ID()] = r.Genome
			ids = append(ids, r.Genome.ID())
		}
	}
	bw.uvarint(uint64(len(ids)))
	for _, id := range ids {
		bw.uvarint(id)
		bw.bytes([]byte(genome.Encode(table[id])))
	}

	for _, r := range d.Bots {
		bw.varint(int64(r.Pos.X))
		bw.varint(int64(r.Pos.Y))
		bw.uvarint(r.Colony)
		bw.uvarint(r.Genome.ID())
		bw.bool(r.Alive)
		bw.state(&r.State)
	}

	if err := bw.flush(); err != nil {
		enc.Close()
		return fmt.Errorf("write snapshot body: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish zstd stream: %w", err)
	}
	return nil
}

// ReadHeader reads only the header of the snapshot at path.
func ReadHeader(path string) (Header, error) {
	file, err := open(path)
	if err != nil {
		return Header{}, err
	}
	defer file.Close()
	return readHeader(file)
}

// Read loads the snapshot at path.
func Read(path string) (world.Dump, Header, error) {
	file, err := open(path)
	if err != nil {
		return world.Dump{}, Header{}, err
	}
	defer file.Close()

	header, err := readHeader(file)
	if err != nil {
		return world.Dump{}, Header{}, err
	}

	dec, err := zstd.NewReader(file)
	if err != nil {
		return world.Dump{}, Header{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	defer dec.Close()

	d, err := readBody(&reader{r: bufio.NewReader(dec)}, header)
	if err != nil {
		return world.Dump{}, Header{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return d, header, nil
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return file, nil
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, len(magic)+headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("%w: read header: %v", ErrInvalidSnapshot, err)
	}
	if string(buf[:len(magic)]) != string(magic) {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrInvalidSnapshot, buf[:len(magic)])
	}

	var h Header
	h.unmarshal(buf[len(magic):])
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: file has %d, want %d", ErrVersionMismatch, h.Version, Version)
	}
	if h.Height == 0 || h.Width == 0 || uint64(h.Height)*uint64(h.Width) > maxCells {
		return Header{}, fmt.Errorf("%w: bad dimensions %dx%d", ErrInvalidSnapshot, h.Width, h.Height)
	}
	if h.Bots > uint64(h.Height)*uint64(h.Width) {
		return Header{}, fmt.Errorf("%w: %d bots on %d cells", ErrInvalidSnapshot, h.Bots, uint64(h.Height)*uint64(h.Width))
	}
	return h, nil
}

func readBody(br *reader, h Header) (world.Dump, error) {
	d := world.Dump{
		Tick:       h.Tick,
		Height:     int(h.Height),
		Width:      int(h.Width),
		NextColony: h.NextColony,
		NextGenome: h.NextGenome,
	}

	rules := br.bytes(maxRulesSize)
	if br.err != nil {
		return world.Dump{}, fmt.Errorf("read rules: %w", br.err)
	}
	if err := json.Unmarshal(rules, &d.Rules); err != nil {
		return world.Dump{}, fmt.Errorf("decode rules: %w", err)
	}

	cells := d.Height * d.Width
	d.Sun = make([]int64, cells)
	d.Mineral = make([]int64, cells)
	for i := range d.Sun {
		d.Sun[i] = br.varint()
	}
	for i := range d.Mineral {
		d.Mineral[i] = br.varint()
	}

	n := br.uvarint()
	if br.err == nil && n > h.Bots {
		return world.Dump{}, fmt.Errorf("%d genomes for %d bots", n, h.Bots)
	}
	table := make(map[uint64]*genome.Genome)
	for i := uint64(0); i < n && br.err == nil; i++ {
		id := br.uvarint()
		text := br.bytes(maxTextSize)
		if br.err != nil {
			break
		}
		g, err := genome.Decode(id, string(text))
		if err != nil {
			return world.Dump{}, fmt.Errorf("genome %d: %w", id, err)
		}
		table[id] = g
	}

	d.Bots = make([]world.BotRecord, 0, h.Bots)
	for i := uint64(0); i < h.Bots && br.err == nil; i++ {
		var r world.BotRecord
		r.Pos = types.Pos{X: int(br.varint()), Y: int(br.varint())}
		r.Colony = br.uvarint()
		id := br.uvarint()
		r.Alive = br.bool()
		br.state(&r.State)
		if br.err != nil {
			break
		}
		g, ok := table[id]
		if !ok {
			return world.Dump{}, fmt.Errorf("bot %d references unknown genome %d", i, id)
		}
		r.Genome = g
		d.Bots = append(d.Bots, r)
	}

	if br.err != nil {
		return world.Dump{}, br.err
	}
	return d, nil
}

// writer accumulates the first error, like bufio.Writer itself.
type writer struct {
	w   *bufio.Writer
	buf [binary.MaxVarintLen64]byte
	err error
}

func (w *writer) write(p []byte) {
	if w.err == nil {
		_, w.err = w.w.Write(p)
	}
}

func (w *writer) uvarint(v uint64) { w.write(w.buf[:binary.PutUvarint(w.buf[:], v)]) }
func (w *writer) varint(v int64)   { w.write(w.buf[:binary.PutVarint(w.buf[:], v)]) }

func (w *writer) bytes(p []byte) {
	w.uvarint(uint64(len(p)))
	w.write(p)
}

func (w *writer) bool(v bool) {
	if v {
		w.write([]byte{1})
	} else {
		w.write([]byte{0})
	}
}

func (w *writer) state(st *bot.State) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.LittleEndian, st)
	}
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

type reader struct {
	r   *bufio.Reader
	err error
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = binary.ReadUvarint(r.r)
	return v
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	var v int64
	v, r.err = binary.ReadVarint(r.r)
	return v
}

func (r *reader) bytes(limit uint64) []byte {
	n := r.uvarint()
	if r.err != nil {
		return nil
	}
	if n > limit {
		r.err = fmt.Errorf("field of %d bytes exceeds %d", n, limit)
		return nil
	}
	p := make([]byte, n)
	_, r.err = io.ReadFull(r.r, p)
	return p
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	var b byte
	b, r.err = r.r.ReadByte()
	return b != 0
}

func (r *reader) state(st *bot.State) {
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, st)
	}
}

// Snapshot file names carry the tick: snapshot-TICK.tlsn.
var filenamePattern = regexp.MustCompile(`^snapshot-(\d+)\.tlsn$`)

// Filename returns the standard file name for a snapshot taken at tick.
func Filename(tick uint64) string {
	return fmt.Sprintf("snapshot-%d.tlsn", tick)
}

// Info describes a snapshot file found on disk.
type Info struct {
	Path string
	Tick uint64
	Size int64
}

// Find lists the snapshots in dir, newest first.
func Find(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var found []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		tick, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, Info{Path: filepath.Join(dir, entry.Name()), Tick: tick, Size: info.Size()})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Tick > found[j].Tick
	})
	return found, nil
}

// FindLatest returns the newest snapshot in dir.
func FindLatest(dir string) (*Info, error) {
	found, err := Find(dir)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return &found[0], nil
}

// Prune removes all but the keep newest snapshots in dir.
func Prune(dir string, keep int) (int, error) {
	found, err := Find(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := max(keep, 0); i < len(found); i++ {
		if err := os.Remove(found[i].Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", found[i].Path, err)
		}
		removed++
	}
	return removed, nil
}
