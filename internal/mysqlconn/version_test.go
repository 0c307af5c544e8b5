package mysqlconn

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantMajor  int
		wantMinor  int
		wantPatch  int
		wantFlavor string
		wantAurora string
		wantErr    bool
	}{
		{
			name:       "MySQL 8.0.35",
			raw:        "8.0.35",
			wantMajor:  8,
			wantMinor:  0,
			wantPatch:  35,
			wantFlavor: "mysql",
		},
		{
			name:       "Percona Server",
			raw:        "8.0.28-19-Percona Server",
			wantMajor:  8,
			wantMinor:  0,
			wantPatch:  28,
			wantFlavor: "percona",
		},
		{
			name:       "Percona XtraDB Cluster",
			raw:        "8.0.35-27-Percona XtraDB Cluster",
			wantMajor:  8,
			wantMinor:  0,
			wantPatch:  35,
			wantFlavor: "percona-xtradb-cluster",
		},
		{
			name:       "MariaDB",
			raw:        "10.11.6-MariaDB",
			wantMajor:  10,
			wantMinor:  11,
			wantPatch:  6,
			wantFlavor: "mariadb",
		},
		{
			name:       "Aurora MySQL",
			raw:        "8.0.mysql_aurora.3.04.0",
			wantMajor:  8,
			wantMinor:  0,
			wantFlavor: "aurora-mysql",
			wantAurora: "3.04.0",
		},
		{
			name:    "garbage",
			raw:     "not a version",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVersion(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if v.Major != tt.wantMajor || v.Minor != tt.wantMinor || v.Patch != tt.wantPatch {
				t.Errorf("ParseVersion(%q) = %d.%d.%d, want %d.%d.%d",
					tt.raw, v.Major, v.Minor, v.Patch, tt.wantMajor, tt.wantMinor, tt.wantPatch)
			}
			if v.Flavor != tt.wantFlavor {
				t.Errorf("ParseVersion(%q).Flavor = %q, want %q", tt.raw, v.Flavor, tt.wantFlavor)
			}
			if v.AuroraVersion != tt.wantAurora {
				t.Errorf("ParseVersion(%q).AuroraVersion = %q, want %q", tt.raw, v.AuroraVersion, tt.wantAurora)
			}
		})
	}
}

func TestServerVersion_AtLeast(t *testing.T) {
	v := ServerVersion{Major: 8, Minor: 0, Patch: 23}

	cases := []struct {
		major, minor, patch int
		want                bool
	}{
		{8, 0, 23, true},
		{8, 0, 22, true},
		{8, 0, 24, false},
		{7, 9, 99, true},
		{9, 0, 0, false},
	}
	for _, c := range cases {
		if got := v.AtLeast(c.major, c.minor, c.patch); got != c.want {
			t.Errorf("AtLeast(%d,%d,%d) = %v, want %v", c.major, c.minor, c.patch, got, c.want)
		}
	}
}

func TestServerVersion_SupportsBackupLock(t *testing.T) {
	cases := []struct {
		name string
		v    ServerVersion
		want bool
	}{
		{"mysql 8.0", ServerVersion{Major: 8, Minor: 0, Patch: 1}, true},
		{"mysql 5.7", ServerVersion{Major: 5, Minor: 7, Patch: 30}, true},
		{"mysql 5.6", ServerVersion{Major: 5, Minor: 6, Patch: 51}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.SupportsBackupLock(); got != c.want {
				t.Errorf("SupportsBackupLock() = %v, want %v", got, c.want)
			}
		})
	}
}
