// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package archive

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Sample vectors are stored as CBOR arrays using core deterministic
// encoding, which shortens floats only where the value is preserved.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("archive: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("archive: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeSample(data []float64) ([]byte, error) {
	b, err := encMode.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error encoding sample: %w", err)
	}
	return b, nil
}

func decodeSample(b []byte) ([]float64, error) {
	var data []float64
	if err := decMode.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("error decoding sample: %w", err)
	}
	return data, nil
}
