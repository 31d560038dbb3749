package server

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// number keeps INCR/DECR arithmetic integral until a float is involved.
type number struct {
	i       int64
	f       float64
	isFloat bool
}

func parseNumber(s string) (number, error) {
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return number{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return number{}, errors.New("not a finite number")
		}
		return number{f: f, isFloat: true}, nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return number{}, err
	}
	return number{i: i}, nil
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n number) neg() number {
	return number{i: -n.i, f: -n.f, isFloat: n.isFloat}
}

func (n number) add(o number) number {
	if n.isFloat || o.isFloat {
		return number{f: n.float() + o.float(), isFloat: true}
	}
	return number{i: n.i + o.i}
}

func (n number) String() string {
	if n.isFloat {
		return strconv.FormatFloat(n.f, 'f', -1, 64)
	}
	return strconv.FormatInt(n.i, 10)
}
