// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package fragment decodes the file names the S3A block buffer writes into its
// spill directory and classifies the object keys embedded in them.
//
// A buffered block is named
//
//	s3ablock-<part>-<escaped key>-<suffix>.tmp
//
// where <part> is a zero-padded part number of at least four digits and the
// escaped key has its path separators replaced by literal tokens.
package fragment

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// EscapedForwardSlash stands in for "/" inside an escaped key.
	EscapedForwardSlash = "EFS"
	// EscapedBackwardSlash stands in for "\" inside an escaped key.
	EscapedBackwardSlash = "EBS"

	// PartOnePrefix is the file name prefix of a first-part block with a
	// four-digit part field.
	PartOnePrefix = "s3ablock-0001"

	namePrefix = "s3ablock-"
)

var (
	// ErrMalformedName is returned when a file name does not follow the block grammar.
	ErrMalformedName = errors.New("malformed fragment name")

	namePattern = regexp.MustCompile(`^s3ablock-(\d{4,})-(.*?)-\d+\.tmp$`)
)

// Name is a decoded buffer file name.
type Name struct {
	FileName   string
	PartNumber int
	EncodedKey string
	Key        string
}

// IsPartOne reports whether the name belongs to the first part of an object.
func (n Name) IsPartOne() bool {
	return n.PartNumber == 1
}

// Parse decodes fileName. Any name outside the grammar is an error; there is
// no partial result.
func Parse(fileName string) (Name, error) {
	m := namePattern.FindStringSubmatch(fileName)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %q", ErrMalformedName, fileName)
	}

	part, err := strconv.Atoi(m[1])
	if err != nil || part < 1 {
		return Name{}, fmt.Errorf("%w: %q: invalid part number %q", ErrMalformedName, fileName, m[1])
	}

	return Name{
		FileName:   fileName,
		PartNumber: part,
		EncodedKey: m[2],
		Key:        DecodeKey(m[2]),
	}, nil
}

// IsPartOne reports whether fileName holds part number 1. Names outside the
// grammar fall back to a prefix test on the whole part-number field, so
// "s3ablock-00012-..." is never a first part.
func IsPartOne(fileName string) bool {
	if n, err := Parse(fileName); err == nil {
		return n.IsPartOne()
	}
	return strings.HasPrefix(fileName, PartOnePrefix+"-")
}

// DecodeKey reverses the separator escaping. The backslash token is replaced
// first.
func DecodeKey(encoded string) string {
	decoded := strings.ReplaceAll(encoded, EscapedBackwardSlash, `\`)
	return strings.ReplaceAll(decoded, EscapedForwardSlash, "/")
}

// EncodeKey applies the separator escaping used by the block buffer.
func EncodeKey(key string) string {
	key = strings.ReplaceAll(key, `\`, EscapedBackwardSlash)
	return strings.ReplaceAll(key, "/", EscapedForwardSlash)
}

// FileName renders the buffer file name for key, part and suffix.
func FileName(key string, part int, suffix uint64) string {
	return fmt.Sprintf("%s%04d-%s-%d.tmp", namePrefix, part, EncodeKey(key), suffix)
}
