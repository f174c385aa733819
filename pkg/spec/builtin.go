package spec

// BuiltinCatalog returns stock switch profiles. Each call returns fresh
// values so callers may not affect one another.
func BuiltinCatalog() Catalog {
	profiles := []*SwitchProfile{
		{
			ModelID:     "celestica-ds2000",
			DisplayName: "Celestica DS2000",
			Roles:       []string{RoleLeaf},
			Ports: SwitchPorts{
				EndpointAssignable: []PortRangeDescriptor{Range("E1/1-48")},
				FabricAssignable:   []PortRangeDescriptor{Range("E1/49-56")},
			},
			SpeedProfiles: map[string]SpeedProfile{
				RoleLeaf: {EndpointSpeedGbps: 25, FabricSpeedGbps: 100},
			},
		},
		{
			ModelID:     "celestica-ds3000",
			DisplayName: "Celestica DS3000",
			Roles:       []string{RoleSpine},
			Ports: SwitchPorts{
				FabricAssignable: []PortRangeDescriptor{Range("E1/1-32")},
			},
			SpeedProfiles: map[string]SpeedProfile{
				RoleSpine: {FabricSpeedGbps: 100},
			},
		},
		{
			ModelID:     "celestica-ds4000",
			DisplayName: "Celestica DS4000",
			Roles:       []string{RoleSpine},
			Ports: SwitchPorts{
				FabricAssignable: []PortRangeDescriptor{Range("E1/1-64")},
			},
			SpeedProfiles: map[string]SpeedProfile{
				RoleSpine: {FabricSpeedGbps: 400},
			},
		},
		{
			ModelID:     "dell-s5248f-on",
			DisplayName: "Dell S5248F-ON",
			Roles:       []string{RoleLeaf},
			Ports: SwitchPorts{
				EndpointAssignable: []PortRangeDescriptor{Range("E1/1-48")},
				FabricAssignable:   []PortRangeDescriptor{Range("E1/49-56")},
			},
			SpeedProfiles: map[string]SpeedProfile{
				RoleLeaf: {EndpointSpeedGbps: 25, FabricSpeedGbps: 100},
			},
		},
		{
			ModelID:     "edgecore-dcs203",
			DisplayName: "Edgecore DCS203",
			Roles:       []string{RoleLeaf},
			Ports: SwitchPorts{
				EndpointAssignable: []PortRangeDescriptor{Range("E1/1-48"), Range("E1/57-58")},
				FabricAssignable:   []PortRangeDescriptor{Range("E1/49-56")},
			},
			SpeedProfiles: map[string]SpeedProfile{
				RoleLeaf: {EndpointSpeedGbps: 25, FabricSpeedGbps: 100},
			},
		},
		{
			ModelID:     "edgecore-dcs501",
			DisplayName: "Edgecore DCS501",
			Roles:       []string{RoleLeaf, RoleSpine},
			Ports: SwitchPorts{
				EndpointAssignable: []PortRangeDescriptor{Range("E1/1-16")},
				FabricAssignable:   []PortRangeDescriptor{Range("E1/17-32")},
			},
			SpeedProfiles: map[string]SpeedProfile{
				RoleLeaf:  {EndpointSpeedGbps: 100, FabricSpeedGbps: 100},
				RoleSpine: {FabricSpeedGbps: 100},
			},
		},
	}

	c := make(Catalog, len(profiles))
	for _, p := range profiles {
		c[p.ModelID] = p
	}
	return c
}
