// SPDX-License-Identifier: EPL-2.0

// Package audconv converts uploaded audio and summarises its spectrum.
//
// A conversion is linear and keeps no state between requests:
//
//	decode -> analyze original -> resample, quantize -> analyze processed -> encode
//
// The Pipeline depends only on a codec.Codec, so the same orchestration runs
// fully in process (codec.Native) or with ffmpeg for the formats Go cannot
// read or write (codec.Chain).
//
// # Quick Start
//
//	p := audconv.New(codec.NewNative(nil))
//
//	req, err := audconv.ParseRequest(audconv.Form{
//	    Present:    true,
//	    Data:       data,
//	    Filename:   "take1.wav",
//	    SampleRate: "16000",
//	    BitDepth:   "16",
//	    Format:     "wav",
//	}, audconv.DefaultLimits())
//	if err != nil {
//	    // ValidationErrors lists every bad field
//	}
//
//	res, err := p.Convert(ctx, req)
//
// Result carries both spectra, the encoded bytes and the parameters that
// were actually applied. A failed conversion returns a *StageError naming
// the stage that could not be reached; its cause is a *failure.Error.
//
// # Spectra
//
// The processed spectrum is always taken from the transformed signal, never
// from a second decode of the output. When neither the rate nor the depth
// changes, both spectra are identical.
package audconv
