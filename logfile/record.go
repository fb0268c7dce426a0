/*
Copyright (C) 2026  The GoatDB Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package logfile

import "encoding/json"

// Record is one log entry: the raw JSON bytes of a single object plus the
// extracted "id" field. Everything besides the id is carried opaquely.
type Record struct {
	ID  string
	Raw json.RawMessage
}

// idProbe pulls just the id out of a record without typing the rest.
type idProbe struct {
	ID any `json:"id"`
}

// NewRecord marshals v and harvests its id.
func NewRecord(v any) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Record{}, err
	}
	return DecodeRecord(raw)
}

// DecodeRecord validates raw as one JSON object and harvests its id.
// Records whose id is missing or not a string keep an empty ID; they are
// stored but never deduplicated.
func DecodeRecord(raw []byte) (Record, error) {
	var probe idProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Record{}, err
	}
	rec := Record{Raw: json.RawMessage(append([]byte(nil), raw...))}
	if id, ok := probe.ID.(string); ok {
		rec.ID = id
	}
	return rec, nil
}
