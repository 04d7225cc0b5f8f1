package domain

import "testing"

func TestMemberStatusAfterDivestiture(t *testing.T) {
	cases := []struct {
		name    string
		current MemberStatus
		total   int64
		want    MemberStatus
	}{
		{"active member fully divested is locked", MemberStatusActive, 0, MemberStatusLocked},
		{"active member with holdings stays active", MemberStatusActive, 3, MemberStatusActive},
		{"inactive member fully divested stays inactive", MemberStatusInactive, 0, MemberStatusInactive},
		{"suspended member fully divested stays suspended", MemberStatusSuspended, 0, MemberStatusSuspended},
		{"locked member stays locked", MemberStatusLocked, 0, MemberStatusLocked},
		{"terminated member stays terminated", MemberStatusTerminated, 0, MemberStatusTerminated},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MemberStatusAfterDivestiture(tc.current, tc.total); got != tc.want {
				t.Errorf("MemberStatusAfterDivestiture(%s, %d) = %s, want %s", tc.current, tc.total, got, tc.want)
			}
		})
	}
}
