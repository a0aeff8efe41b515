/*
DESCRIPTION
  ccm.go provides colour correction matrix calculations.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package isp

import "gonum.org/v1/gonum/mat"

// correctionMatrix returns m with column j scaled by gains[j], i.e.
// m * diag(gains).
func correctionMatrix(m [3][3]float64, gains [3]float64) [3][3]float64 {
	a := mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
	d := mat.NewDiagDense(3, []float64{gains[0], gains[1], gains[2]})

	var c mat.Dense
	c.Mul(a, d)

	var out [3][3]float64
	for i := range out {
		for j := range out[i] {
			out[i][j] = c.At(i, j)
		}
	}
	return out
}

// ParseMatrix converts a row-major slice of nine values into a matrix. ok is
// false if v does not hold nine values.
func ParseMatrix(v []float64) (m [3][3]float64, ok bool) {
	if len(v) != 9 {
		return m, false
	}
	d := mat.NewDense(3, 3, v)
	for i := range m {
		mat.Row(m[i][:], i, d)
	}
	return m, true
}
