package protocol

import (
	"fmt"
	"io"
)

// ReadByte reads exactly one byte, blocking until it arrives or the stream closes.
func ReadByte(r io.Reader, op string) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	return buf[0], nil
}

// ReadRequestType reads the leading request-type byte of a request.
func ReadRequestType(r io.Reader) (RequestType, error) {
	b, err := ReadByte(r, "read request type")
	return RequestType(b), err
}

// ReadString reads a length-prefixed string: one length byte, then that many
// raw bytes.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadByte(r, "read string length")
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", &TransportError{Op: "read string body", Err: err}
	}
	return string(buf), nil
}

// WriteString writes s as a length-prefixed string in a single write.
func WriteString(w io.Writer, s string) error {
	if len(s) > MaxStringSize {
		return fmt.Errorf("encode %q: %w", truncate(s), ErrStringTooLong)
	}
	buf := make([]byte, 1+len(s))
	buf[0] = byte(len(s))
	copy(buf[1:], s)
	if _, err := w.Write(buf); err != nil {
		return &TransportError{Op: "write string", Err: err}
	}
	return nil
}

// ReadAddress reads the port string a peer reports and joins it with the host
// the transport observed.
func ReadAddress(r io.Reader, host string) (string, error) {
	port, err := ReadString(r)
	if err != nil {
		return "", err
	}
	return host + ":" + port, nil
}

// ReadRequest reads the body of a request of type t: the port, and for the
// file requests the filename that follows it.
func ReadRequest(r io.Reader, t RequestType, host string) (Request, error) {
	req := Request{Type: t}
	if !t.Known() {
		return req, &ProtocolError{Type: t, Reason: "unrecognized request type"}
	}

	addr, err := ReadAddress(r, host)
	if err != nil {
		return req, err
	}
	req.Addr = addr

	if t.HasFilename() {
		name, err := ReadString(r)
		if err != nil {
			return req, err
		}
		req.Filename = name
	}
	return req, nil
}

// WriteRequest encodes a full request as a client sends it. Only the port goes
// on the wire; the node derives the host from the connection.
func WriteRequest(w io.Writer, t RequestType, port string, filename string) error {
	if !t.Known() {
		return &ProtocolError{Type: t, Reason: "unrecognized request type"}
	}
	if _, err := w.Write([]byte{byte(t)}); err != nil {
		return &TransportError{Op: "write request type", Err: err}
	}
	if err := WriteString(w, port); err != nil {
		return err
	}
	if t.HasFilename() {
		return WriteString(w, filename)
	}
	return nil
}

func writeCount(w io.Writer, n int, op string) error {
	if n > MaxListSize {
		return fmt.Errorf("%s with %d entries: %w", op, n, ErrTooManyEntries)
	}
	if _, err := w.Write([]byte{byte(n)}); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

// WritePeerList writes the count byte followed by each peer address, in order.
func WritePeerList(w io.Writer, peers []string) error {
	if err := writeCount(w, len(peers), "write peer count"); err != nil {
		return err
	}
	for _, p := range peers {
		if err := WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

// WriteFileList writes the count byte followed by (filename, owner) pairs.
func WriteFileList(w io.Writer, files []FileEntry) error {
	if err := writeCount(w, len(files), "write file count"); err != nil {
		return err
	}
	for _, f := range files {
		if err := WriteString(w, f.Name); err != nil {
			return err
		}
		if err := WriteString(w, f.Owner); err != nil {
			return err
		}
	}
	return nil
}

// ReadPeerList decodes a peer-list reply.
func ReadPeerList(r io.Reader) ([]string, error) {
	n, err := ReadByte(r, "read peer count")
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		p, err := ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("peer %d/%d: %w", i+1, n, err)
		}
		peers = append(peers, p)
	}
	return peers, nil
}

// ReadFileList decodes a file-list reply.
func ReadFileList(r io.Reader) ([]FileEntry, error) {
	n, err := ReadByte(r, "read file count")
	if err != nil {
		return nil, err
	}
	files := make([]FileEntry, 0, n)
	for i := 0; i < int(n); i++ {
		name, err := ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("file %d/%d name: %w", i+1, n, err)
		}
		owner, err := ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("file %d/%d owner: %w", i+1, n, err)
		}
		files = append(files, FileEntry{Name: name, Owner: owner})
	}
	return files, nil
}

// WriteSnapshot writes the full add-peer reply: peer list, then file list.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	if err := WritePeerList(w, s.Peers); err != nil {
		return err
	}
	return WriteFileList(w, s.Files)
}

// ReadSnapshot decodes the full add-peer reply.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	peers, err := ReadPeerList(r)
	if err != nil {
		return Snapshot{}, err
	}
	files, err := ReadFileList(r)
	if err != nil {
		return Snapshot{Peers: peers}, err
	}
	return Snapshot{Peers: peers, Files: files}, nil
}

func truncate(s string) string {
	if len(s) <= 32 {
		return s
	}
	return s[:32] + "..."
}
