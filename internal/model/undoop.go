package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationKind discriminates the UndoableOperation body sum type. Encoding
// prefers this explicit discriminator to structural matching on the JSON
// shape, so the log format survives field additions without ambiguity.
type OperationKind string

const (
	OpMove          OperationKind = "move"
	OpCopy          OperationKind = "copy"
	OpDelete        OperationKind = "delete"
	OpBatchMove     OperationKind = "batch_move"
	OpBatchDelete   OperationKind = "batch_delete"
	OpOrganizeFiles OperationKind = "organize_files"
)

// MoveOp moves a file from Source to Destination.
type MoveOp struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// CopyOp copies a file from Source to Destination.
type CopyOp struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// DeleteOp deletes Path, optionally preserving a restorable BackupPath.
type DeleteOp struct {
	Path       string `json:"path"`
	BackupPath string `json:"backup_path,omitempty"`
}

// PrimitiveOp is one of MoveOp, CopyOp, DeleteOp — the element type of an
// OrganizeFiles batch, which may mix move/copy/delete entries.
type PrimitiveOp struct {
	Kind   OperationKind
	Move   *MoveOp
	Copy   *CopyOp
	Delete *DeleteOp
}

func (p PrimitiveOp) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case OpMove:
		return json.Marshal(struct {
			Type string `json:"type"`
			MoveOp
		}{string(OpMove), *p.Move})
	case OpCopy:
		return json.Marshal(struct {
			Type string `json:"type"`
			CopyOp
		}{string(OpCopy), *p.Copy})
	case OpDelete:
		return json.Marshal(struct {
			Type string `json:"type"`
			DeleteOp
		}{string(OpDelete), *p.Delete})
	default:
		return nil, fmt.Errorf("primitive op: unknown kind %q", p.Kind)
	}
}

func (p *PrimitiveOp) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	p.Kind = OperationKind(tagged.Type)
	switch p.Kind {
	case OpMove:
		var v MoveOp
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		p.Move = &v
	case OpCopy:
		var v CopyOp
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		p.Copy = &v
	case OpDelete:
		var v DeleteOp
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		p.Delete = &v
	default:
		return fmt.Errorf("primitive op: unknown type %q", tagged.Type)
	}
	return nil
}

func MoveOperand(op MoveOp) PrimitiveOp     { return PrimitiveOp{Kind: OpMove, Move: &op} }
func CopyOperand(op CopyOp) PrimitiveOp     { return PrimitiveOp{Kind: OpCopy, Copy: &op} }
func DeleteOperand(op DeleteOp) PrimitiveOp { return PrimitiveOp{Kind: OpDelete, Delete: &op} }

// Operation is the tagged-union body of an UndoableOperation: exactly one of
// the six variants is populated, selected by Kind.
type Operation struct {
	Kind          OperationKind
	Move          *MoveOp
	Copy          *CopyOp
	Delete        *DeleteOp
	BatchMove     []MoveOp
	BatchDelete   []DeleteOp
	OrganizeFiles []PrimitiveOp
}

func NewMoveOperation(source, destination string) Operation {
	return Operation{Kind: OpMove, Move: &MoveOp{Source: source, Destination: destination}}
}

func NewCopyOperation(source, destination string) Operation {
	return Operation{Kind: OpCopy, Copy: &CopyOp{Source: source, Destination: destination}}
}

func NewDeleteOperation(path, backupPath string) Operation {
	return Operation{Kind: OpDelete, Delete: &DeleteOp{Path: path, BackupPath: backupPath}}
}

func NewBatchMoveOperation(ops []MoveOp) Operation {
	return Operation{Kind: OpBatchMove, BatchMove: ops}
}

func NewBatchDeleteOperation(ops []DeleteOp) Operation {
	return Operation{Kind: OpBatchDelete, BatchDelete: ops}
}

func NewOrganizeFilesOperation(ops []PrimitiveOp) Operation {
	return Operation{Kind: OpOrganizeFiles, OrganizeFiles: ops}
}

type operationWire struct {
	Type          OperationKind `json:"type"`
	Move          *MoveOp       `json:"move,omitempty"`
	Copy          *CopyOp       `json:"copy,omitempty"`
	Delete        *DeleteOp     `json:"delete,omitempty"`
	BatchMove     []MoveOp      `json:"batch_move,omitempty"`
	BatchDelete   []DeleteOp    `json:"batch_delete,omitempty"`
	OrganizeFiles []PrimitiveOp `json:"organize_files,omitempty"`
}

func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationWire{
		Type:          o.Kind,
		Move:          o.Move,
		Copy:          o.Copy,
		Delete:        o.Delete,
		BatchMove:     o.BatchMove,
		BatchDelete:   o.BatchDelete,
		OrganizeFiles: o.OrganizeFiles,
	})
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var w operationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Operation{
		Kind:          w.Type,
		Move:          w.Move,
		Copy:          w.Copy,
		Delete:        w.Delete,
		BatchMove:     w.BatchMove,
		BatchDelete:   w.BatchDelete,
		OrganizeFiles: w.OrganizeFiles,
	}
	return nil
}

// UndoableOperation is a single entry in the undo history.
type UndoableOperation struct {
	ID          string      `json:"id"`
	Operation   Operation   `json:"operation"`
	Timestamp   time.Time   `json:"timestamp"`
	Description string      `json:"description"`
	Undone      bool        `json:"undone"`
	Metadata    interface{} `json:"metadata,omitempty"`
}
