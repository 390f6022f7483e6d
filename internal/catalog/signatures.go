package catalog

import "github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"

// builtinSignatures is the default set of known remote-access products.
// Some products appear more than once with different marker sets; order is kept.
var builtinSignatures = []models.Signature{
	{
		Name:         "TeamViewer",
		ProcessNames: []string{"TeamViewer.exe", "TeamViewer_Service.exe", "tv_w32.exe", "tv_x64.exe"},
		RegistryKeys: []string{`SOFTWARE\TeamViewer`, `SOFTWARE\WOW6432Node\TeamViewer`},
		CommonPorts:  []int{5938, 5939},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "AnyDesk",
		ProcessNames: []string{"AnyDesk.exe", "AnyDeskService.exe"},
		RegistryKeys: []string{`SOFTWARE\AnyDesk`, `SOFTWARE\WOW6432Node\AnyDesk`},
		CommonPorts:  []int{7070},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "Chrome Remote Desktop",
		ProcessNames: []string{"remoting_host.exe", "chrome_remote_desktop_host.exe"},
		RegistryKeys: []string{`SOFTWARE\Google\Chrome Remote Desktop`},
		CommonPorts:  []int{443},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "Windows RDP",
		ProcessNames: []string{"mstsc.exe", "RdpSa.exe", "rdpclip.exe"},
		RegistryKeys: []string{`SYSTEM\CurrentControlSet\Control\Terminal Server`},
		CommonPorts:  []int{3389},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "VNC",
		ProcessNames: []string{"vncviewer.exe", "winvnc.exe", "tvnserver.exe", "vncserver.exe"},
		RegistryKeys: []string{`SOFTWARE\RealVNC`, `SOFTWARE\TightVNC`},
		CommonPorts:  []int{5900, 5901, 5902},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "LogMeIn",
		ProcessNames: []string{"LogMeIn.exe", "LMIGuardianSvc.exe", "LogMeInSystray.exe"},
		RegistryKeys: []string{`SOFTWARE\LogMeIn`},
		CommonPorts:  []int{443},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "Splashtop",
		ProcessNames: []string{"Splashtop.exe", "SplashtopService.exe"},
		RegistryKeys: []string{`SOFTWARE\Splashtop`},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "GoToMyPC",
		ProcessNames: []string{"g2mui.exe", "g2tray.exe", "g2pre.exe"},
		RegistryKeys: []string{`SOFTWARE\Citrix\GoToMyPC`},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "Ammyy Admin",
		ProcessNames: []string{"AA_v3.exe", "AMMYY_Admin.exe"},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "UltraVNC",
		ProcessNames: []string{"winvnc.exe", "vncviewer.exe", "ultravnc.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\ORL\WinVNC3`, `HKLM\SOFTWARE\UltraVNC`},
		CommonPorts:  []int{5900, 5800},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "RealVNC",
		ProcessNames: []string{"vncserver.exe", "vncviewer.exe", "realvnc.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\RealVNC`, `HKCU\SOFTWARE\RealVNC`},
		CommonPorts:  []int{5900, 5800},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "TightVNC",
		ProcessNames: []string{"tvnserver.exe", "tvnviewer.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\TightVNC`},
		CommonPorts:  []int{5900, 5800},
		Severity:     models.SeverityHigh,
	},

	// Commercial
	{
		Name:         "LogMeIn",
		ProcessNames: []string{"LogMeIn.exe", "LMIGuardianSvc.exe", "ramaint.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\LogMeIn`, `HKLM\SYSTEM\CurrentControlSet\Services\LogMeIn`},
		CommonPorts:  []int{443, 5500},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "GoToMyPC",
		ProcessNames: []string{"g2comm.exe", "g2pre.exe", "g2svc.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\Citrix\GoToMyPC`},
		CommonPorts:  []int{8200},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "Splashtop",
		ProcessNames: []string{"Splashtop-streamer.exe", "SRFeature.exe", "SRService.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\Splashtop Inc.`, `HKLM\SOFTWARE\Splashtop`},
		CommonPorts:  []int{6783, 443},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "DameWare",
		ProcessNames: []string{"dwrcs.exe", "DWRCC.exe", "DameWare.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\SolarWinds\DameWare`},
		CommonPorts:  []int{6129, 6130},
		Severity:     models.SeverityHigh,
	},

	// Free / open source
	{
		Name:         "Ammyy Admin",
		ProcessNames: []string{"AA_v3.exe", "AMMYY.exe"},
		RegistryKeys: []string{`HKCU\SOFTWARE\Ammyy`},
		CommonPorts:  []int{5931},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "RemotePC",
		ProcessNames: []string{"RemotePC.exe", "RPCService.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\RemotePC`},
		CommonPorts:  []int{443},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "ScreenConnect (ConnectWise)",
		ProcessNames: []string{"ScreenConnect.Service.exe", "ScreenConnect.ClientService.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\ScreenConnect`},
		CommonPorts:  []int{8040, 8041},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "Radmin",
		ProcessNames: []string{"r_server.exe", "Radmin.exe", "RServer3.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\Radmin`, `HKLM\SYSTEM\RAdmin`},
		CommonPorts:  []int{4899},
		Severity:     models.SeverityCritical,
	},
	{
		Name:         "pcAnywhere",
		ProcessNames: []string{"awhost32.exe", "awrem32.exe", "pcanywhere.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\Symantec\pcAnywhere`},
		CommonPorts:  []int{5631, 5632},
		Severity:     models.SeverityHigh,
	},

	// Cloud-based
	{
		Name:         "Zoho Assist",
		ProcessNames: []string{"ZohoAssist.exe", "ZohoMeeting.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\Zoho\Assist`},
		CommonPorts:  []int{443, 8080},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "Mikogo",
		ProcessNames: []string{"Mikogo-Service.exe", "Mikogo.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\BeamYourScreen`},
		CommonPorts:  []int{6800},
		Severity:     models.SeverityMedium,
	},
	{
		Name:         "ShowMyPC",
		ProcessNames: []string{"ShowMyPC.exe"},
		RegistryKeys: []string{`HKCU\SOFTWARE\ShowMyPC`},
		CommonPorts:  []int{3999},
		Severity:     models.SeverityMedium,
	},

	// Enterprise
	{
		Name:         "BeyondTrust (Bomgar)",
		ProcessNames: []string{"bomgar-scc.exe", "bomgar-rep.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\Bomgar`},
		CommonPorts:  []int{443, 8443},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "VNC Connect",
		ProcessNames: []string{"vncserver.exe", "vncconnect.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\RealVNC\vncserver`},
		CommonPorts:  []int{5900},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "NoMachine",
		ProcessNames: []string{"nxservice.exe", "nxserver.exe", "nxnode.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\NoMachine`},
		CommonPorts:  []int{4000, 4080},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "RemoteUtilities",
		ProcessNames: []string{"rutserv.exe", "rfusclient.exe", "rutview.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\Remote Utilities`},
		CommonPorts:  []int{5650, 5655},
		Severity:     models.SeverityHigh,
	},
	{
		Name:         "AeroAdmin",
		ProcessNames: []string{"AeroAdmin.exe"},
		RegistryKeys: []string{`HKCU\SOFTWARE\AeroAdmin`},
		CommonPorts:  []int{5950},
		Severity:     models.SeverityMedium,
	},
	{
		Name:         "FixMe.IT",
		ProcessNames: []string{"FixMeIT.exe", "FixMeStick.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\TigerVNC`},
		CommonPorts:  []int{443},
		Severity:     models.SeverityMedium,
	},
	{
		Name:         "GetScreen",
		ProcessNames: []string{"GetScreen.exe", "gsservice.exe", "GetScreenHost.exe"},
		RegistryKeys: []string{`HKLM\SOFTWARE\GetScreen`, `HKCU\SOFTWARE\GetScreen`, `HKLM\SOFTWARE\WOW6432Node\GetScreen`},
		CommonPorts:  []int{443, 8443},
		Severity:     models.SeverityCritical,
	},
}

// builtinSystemKeys are registry locations that indicate remote access is enabled
// on the machine itself rather than a specific product being installed.
var builtinSystemKeys = []SystemKey{
	{
		Path:        `HKLM\SYSTEM\CurrentControlSet\Control\Terminal Server`,
		Description: "Windows Remote Desktop enabled status",
	},
	{
		Path:        `HKLM\SOFTWARE\Microsoft\Windows NT\CurrentVersion\Terminal Server\TSAppAllowList`,
		Description: "RDP App Allow List",
	},
}
