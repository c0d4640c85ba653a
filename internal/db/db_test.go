package db

import (
	"testing"

	"github.com/apache/cassandra-gocql-driver/v2"
)

func TestParseConsistency(t *testing.T) {
	cases := []struct {
		in   string
		want gocql.Consistency
	}{
		{"ONE", gocql.One},
		{"QUORUM", gocql.Quorum},
		{"LOCAL_QUORUM", gocql.LocalQuorum},
		{"EACH_QUORUM", gocql.EachQuorum},
		{"ALL", gocql.All},
		{"", gocql.LocalQuorum},
		{"bogus", gocql.LocalQuorum},
	}
	for _, c := range cases {
		if got := parseConsistency(c.in); got != c.want {
			t.Errorf("parseConsistency(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
