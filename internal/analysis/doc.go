// Package analysis reduces pCDM displacement fields to numbers and profiles.
//
//   - [Summarize]: extrema, mean and spread per component
//   - [Profile]: the east-west row closest to a given northing
//   - [Rasterize]: bins scattered points into a regular raster for display
//
// All functions expect results computed for the given coordinates:
//
//	s, err := analysis.Summarize(coords, results)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(s.Components[analysis.Vertical].PeakAbs)
package analysis
