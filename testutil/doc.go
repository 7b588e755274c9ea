// Package testutil builds result-file fixtures for tests.
//
// This package is intended for use in tests only. It wraps frs.Writer in
// a declarative spec so tests state the forest they need instead of the
// write calls that produce it, and it provides mutators that corrupt a
// written file in controlled ways.
//
// # Fixture Files
//
//	path := testutil.WriteResultFile(t, filepath.Join(dir, "a.frs"), binary.LittleEndian,
//	    testutil.Object{
//	        TypeName: "Beam", BaseID: 1, UserID: 11,
//	        Vars: []testutil.Variable{
//	            {Group: []string{"Stress"}, Name: "Axial", Values: []float64{1, 2, 3}},
//	        },
//	    })
//
// # Corruption
//
//	testutil.FlipChecksumByte(t, path) // header checksum mismatch
//	testutil.TruncateCatalog(t, path)  // catalog runs past end of file
package testutil
