package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDestinations(t *testing.T) {
	all := []ClientBots{
		{ClientID: "alice", Bots: []Record{
			{UIN: 100, Groups: []Group{{GroupID: 555, GroupName: "a"}, {GroupID: 0, GroupName: "unknown"}}},
			{UIN: 101, Groups: []Group{{GroupID: 555}, {GroupID: 777, GroupName: "Unknown"}}},
		}},
		{ClientID: "bob", Bots: []Record{
			{UIN: 200, Groups: []Group{{GroupID: 555}, {GroupID: 666}}},
		}},
	}

	dm := BuildDestinations(all)
	assert.Len(t, dm, 2)
	assert.Equal(t, []Candidate{{100, "alice"}, {101, "alice"}, {200, "bob"}}, dm[555])
	assert.Equal(t, []Candidate{{200, "bob"}}, dm[666])

	assert.Equal(t, []string{"alice", "bob"}, clientsOf(dm[555]))
	assert.Equal(t, []int64{100, 101}, botsOf(dm[555], "alice"))
	assert.Nil(t, botsOf(dm[555], "carol"))
}
