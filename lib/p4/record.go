// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package p4

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Action is the change action of a file revision ("add", "edit",
// "delete", "move/delete", ...).
type Action string

// IsDelete reports whether the action removed the file from the depot
// head: a plain delete or the source side of a move.
func (a Action) IsDelete() bool {
	return a == "delete" || a == "move/delete"
}

// FileType is a depot file type such as "text", "binary+F" or the
// legacy "ktext".
type FileType string

// Base returns the base type with any "+modifiers" removed.
func (f FileType) Base() string {
	base, _, _ := strings.Cut(string(f), "+")
	return base
}

// textBases lists base types whose content p4 serves as text,
// including the legacy keyword/executable aliases of text and unicode.
var textBases = map[string]bool{
	"text":     true,
	"unicode":  true,
	"utf8":     true,
	"utf16":    true,
	"ktext":    true,
	"kxtext":   true,
	"xtext":    true,
	"ctext":    true,
	"cxtext":   true,
	"ltext":    true,
	"xltext":   true,
	"xunicode": true,
	"xutf16":   true,
}

// IsText reports whether the type is text-classified. Binary,
// symlink, apple and resource types are not.
func (f FileType) IsText() bool {
	return textBases[f.Base()]
}

// FileRecord is one entry of "p4 files": the head revision of a depot
// file as a flat listing reports it.
type FileRecord struct {
	DepotFile string   `cbor:"depot_file"`
	Revision  int      `cbor:"rev"`
	Change    int      `cbor:"change"`
	Action    Action   `cbor:"action"`
	Type      FileType `cbor:"type"`

	// Time is the revision's submit time in seconds since the Unix
	// epoch, exactly as p4 reports it.
	Time int64 `cbor:"time"`
}

// Revision is one revision from "p4 filelog".
type Revision struct {
	DepotFile string   `cbor:"depot_file"`
	Revision  int      `cbor:"rev"`
	Change    int      `cbor:"change"`
	Action    Action   `cbor:"action"`
	Type      FileType `cbor:"type"`

	// Time is the submit time as a structured timestamp, in UTC.
	Time time.Time `cbor:"time"`

	// Size is the revision's content length in bytes. Zero for
	// deleted revisions, which have no content.
	Size int64 `cbor:"size"`

	// Digest is the server's MD5 digest of the content, upper-case
	// hex. Empty when the server has not computed one.
	Digest string `cbor:"digest,omitempty"`
}

// Content is the materialized content of a depot file.
type Content struct {
	Type FileType `cbor:"type"`
	Data []byte   `cbor:"data"`
}

// ServerInfo is the subset of "p4 info" identifying the connection.
type ServerInfo struct {
	ServerAddress string
	ServerVersion string
	UserName      string
	ClientName    string
	ClientHost    string
}

// tagged is one decoded tagged object with every value rendered as a
// string, which is how p4 reports all fields.
type tagged map[string]string

func (t tagged) intField(key string) (int, error) {
	value, ok := t[key]
	if !ok || value == "" {
		return 0, nil
	}
	number, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return number, nil
}

func (t tagged) int64Field(key string) (int64, error) {
	value, ok := t[key]
	if !ok || value == "" {
		return 0, nil
	}
	number, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return number, nil
}

func parseFileRecord(object tagged) (FileRecord, error) {
	record := FileRecord{
		DepotFile: object["depotFile"],
		Action:    Action(object["action"]),
		Type:      FileType(object["type"]),
	}
	if record.DepotFile == "" {
		return FileRecord{}, fmt.Errorf("files record without depotFile")
	}

	var err error
	if record.Revision, err = object.intField("rev"); err != nil {
		return FileRecord{}, fmt.Errorf("%s: %w", record.DepotFile, err)
	}
	if record.Change, err = object.intField("change"); err != nil {
		return FileRecord{}, fmt.Errorf("%s: %w", record.DepotFile, err)
	}
	if record.Time, err = object.int64Field("time"); err != nil {
		return FileRecord{}, fmt.Errorf("%s: %w", record.DepotFile, err)
	}
	return record, nil
}

// parseFilelog extracts the revisions of one filelog object. p4
// numbers per-revision fields with a suffix: rev0, time0, fileSize0
// for the newest revision, rev1 for the next, and so on.
func parseFilelog(object tagged) ([]Revision, error) {
	depotFile := object["depotFile"]
	if depotFile == "" {
		return nil, fmt.Errorf("filelog record without depotFile")
	}

	var revisions []Revision
	for index := 0; ; index++ {
		suffix := strconv.Itoa(index)
		if _, ok := object["rev"+suffix]; !ok {
			break
		}

		revision := Revision{
			DepotFile: depotFile,
			Action:    Action(object["action"+suffix]),
			Type:      FileType(object["type"+suffix]),
			Digest:    object["digest"+suffix],
		}

		var err error
		if revision.Revision, err = object.intField("rev" + suffix); err != nil {
			return nil, fmt.Errorf("%s: %w", depotFile, err)
		}
		if revision.Change, err = object.intField("change" + suffix); err != nil {
			return nil, fmt.Errorf("%s: %w", depotFile, err)
		}
		if revision.Size, err = object.int64Field("fileSize" + suffix); err != nil {
			return nil, fmt.Errorf("%s: %w", depotFile, err)
		}
		seconds, err := object.int64Field("time" + suffix)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", depotFile, err)
		}
		revision.Time = time.Unix(seconds, 0).UTC()

		revisions = append(revisions, revision)
	}
	return revisions, nil
}

func parseServerInfo(object tagged) ServerInfo {
	return ServerInfo{
		ServerAddress: object["serverAddress"],
		ServerVersion: object["serverVersion"],
		UserName:      object["userName"],
		ClientName:    object["clientName"],
		ClientHost:    object["clientHost"],
	}
}
