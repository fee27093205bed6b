package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int
		wantErr bool
	}{
		{name: "single id", args: []string{"42"}, want: []int{42}},
		{name: "multiple args", args: []string{"1", "2", "3"}, want: []int{1, 2, 3}},
		{name: "comma separated", args: []string{"1,2,5"}, want: []int{1, 2, 5}},
		{name: "range", args: []string{"10-13"}, want: []int{10, 11, 12, 13}},
		{name: "mixed", args: []string{"1", "4,5", "8-10"}, want: []int{1, 4, 5, 8, 9, 10}},
		{name: "whitespace tolerated", args: []string{"1, 2 , 3"}, want: []int{1, 2, 3}},
		{name: "reversed range", args: []string{"10-5"}, wantErr: true},
		{name: "not a number", args: []string{"abc"}, wantErr: true},
		{name: "bad range bound", args: []string{"1-x"}, wantErr: true},
		{name: "empty", args: []string{""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDList(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
