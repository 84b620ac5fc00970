package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocol-chat/notify-backend/internal/models"
)

func activeProfiles(ids ...string) map[string]*models.Profile {
	out := make(map[string]*models.Profile, len(ids))
	for _, id := range ids {
		out[id] = &models.Profile{ID: id, Username: id, IsActive: true}
	}
	return out
}

func TestPresenceFilter_ExcludesSenderFirst(t *testing.T) {
	f := NewPresenceFilter(
		&fakePresence{presence: map[string]models.Presence{}},
		&fakeProfiles{profiles: activeProfiles("alice", "bob")},
		4,
	)

	eligible, skipped := f.Filter(context.Background(), []string{"alice", "bob"}, "alice", "c1")
	require.Equal(t, []string{"bob"}, eligible)
	require.Equal(t, SkipSender, skipped["alice"])
}

func TestPresenceFilter_ExcludesOnlineMembers(t *testing.T) {
	f := NewPresenceFilter(
		&fakePresence{presence: map[string]models.Presence{
			"bob": {Online: true},
		}},
		&fakeProfiles{profiles: activeProfiles("bob", "carol")},
		4,
	)

	eligible, skipped := f.Filter(context.Background(), []string{"bob", "carol"}, "alice", "c1")
	require.Equal(t, []string{"carol"}, eligible)
	require.Equal(t, SkipOnline, skipped["bob"])
}

func TestPresenceFilter_ExcludesMembersWithConversationOpen(t *testing.T) {
	f := NewPresenceFilter(
		&fakePresence{presence: map[string]models.Presence{
			"bob":   {ActiveConversationID: "c1"},
			"carol": {ActiveConversationID: "c2"},
		}},
		&fakeProfiles{profiles: activeProfiles("bob", "carol")},
		4,
	)

	eligible, skipped := f.Filter(context.Background(), []string{"bob", "carol"}, "alice", "c1")
	require.Equal(t, []string{"carol"}, eligible)
	require.Equal(t, SkipActiveConversation, skipped["bob"])
}

func TestPresenceFilter_FailsClosedOnMissingProfile(t *testing.T) {
	f := NewPresenceFilter(
		&fakePresence{presence: map[string]models.Presence{}},
		&fakeProfiles{profiles: activeProfiles("carol")},
		4,
	)

	eligible, skipped := f.Filter(context.Background(), []string{"ghost", "carol"}, "alice", "c1")
	require.Equal(t, []string{"carol"}, eligible)
	require.Equal(t, SkipNoProfile, skipped["ghost"])
}

func TestPresenceFilter_PreservesInputOrder(t *testing.T) {
	f := NewPresenceFilter(
		&fakePresence{presence: map[string]models.Presence{}},
		&fakeProfiles{profiles: activeProfiles("u1", "u2", "u3", "u4", "u5")},
		2,
	)

	members := []string{"u1", "u2", "u3", "u4", "u5"}
	eligible, _ := f.Filter(context.Background(), members, "sender", "c1")
	require.Equal(t, members, eligible)
}
