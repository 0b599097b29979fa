package comm

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/denisbrodbeck/machineid"
)

const (
	// UUIDSize is the size of the unique device ID.
	UUIDSize = 12
	// MaxBoardName is the size of the board name field.
	MaxBoardName = 16

	identitySize = UUIDSize + 4 + MaxBoardName
	machineApp   = "flexsea"
)

// Identity is the answer to a WHO_AM_I request.
type Identity struct {
	UUID         [UUIDSize]byte
	SerialNumber uint32
	Board        string
}

func (id *Identity) String() string {
	return fmt.Sprintf("%s sn=%d uuid=%s", id.Board, id.SerialNumber, hex.EncodeToString(id.UUID[:]))
}

// MarshalBinary encodes the identity as a WHO_AM_I payload.
func (id *Identity) MarshalBinary() ([]byte, error) {
	if len(id.Board) > MaxBoardName {
		return nil, fmt.Errorf("board name %q longer than %d bytes", id.Board, MaxBoardName)
	}
	b := make([]byte, identitySize)
	copy(b, id.UUID[:])
	binary.LittleEndian.PutUint32(b[UUIDSize:], id.SerialNumber)
	copy(b[UUIDSize+4:], id.Board)
	return b, nil
}

// UnmarshalBinary decodes a WHO_AM_I payload. The board name is optional.
func (id *Identity) UnmarshalBinary(b []byte) error {
	if len(b) < UUIDSize+4 {
		return malformed("identity of %d bytes", len(b))
	}
	copy(id.UUID[:], b)
	id.SerialNumber = binary.LittleEndian.Uint32(b[UUIDSize:])
	name := b[UUIDSize+4:]
	if len(name) > MaxBoardName {
		name = name[:MaxBoardName]
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	id.Board = string(name)
	return nil
}

// HostIdentity derives a stable identity from the machine ID.
func HostIdentity(board string) (*Identity, error) {
	sum, err := machineid.ProtectedID(machineApp)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(sum)
	if err != nil {
		return nil, err
	}
	if len(raw) < UUIDSize+4 {
		return nil, fmt.Errorf("machine id too short")
	}
	if len(board) > MaxBoardName {
		board = board[:MaxBoardName]
	}
	id := &Identity{
		SerialNumber: binary.LittleEndian.Uint32(raw[UUIDSize:]),
		Board:        board,
	}
	copy(id.UUID[:], raw)
	return id, nil
}
