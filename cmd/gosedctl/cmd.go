package main

import (
	"fmt"
	"os"

	"github.com/open-source-firmware/go-tcg-storage/pkg/core"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/hash"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/table"
	"github.com/open-source-firmware/go-tcg-storage/pkg/core/uid"
	"github.com/open-source-firmware/go-tcg-storage/pkg/drive"
)

// context is the context struct required by kong command line parser
type context struct{}

// initialSetupCmd is the struct for the initial-setup cmd required by kong command line parser
type initialSetupCmd struct {
	Device   string `flag:"" required:"" short:"d"  help:"Path to SED device (e.g. /dev/nvme0)"`
	Password string `flag:"" optional:"" short:"p"`
}

type loadPBAImageCmd struct {
	Device   string `flag:"" required:"" short:"d"  help:"Path to SED device (e.g. /dev/nvme0)"`
	Password string `flag:"" required:"" short:"p" type:"password"`
	Path     string `flag:"" required:"" short:"i" help:"Path to PBA image"`
}

type revertTPerCmd struct {
	Device   string `flag:"" required:"" short:"d"  help:"Path to SED device (e.g. /dev/nvme0)"`
	Password string `flag:"" required:"" short:"p" type:"password"`
}

type revertNoeraseCmd struct {
	Device   string `flag:"" required:"" short:"d"  help:"Path to SED device (e.g. /dev/nvme0)"`
	Password string `flag:"" required:"" short:"p" type:"password"`
}

// revertPSIDCmd performs a factory revert authenticated with the drive's
// printed PSID instead of the provisioned SID password. This is the only
// recovery path once the SID/Admin1 credentials are lost.
type revertPSIDCmd struct {
	Device string `flag:"" required:"" short:"d"  help:"Path to SED device (e.g. /dev/nvme0)"`
	PSID   string `flag:"" required:"" short:"s" help:"Printed PSID from the drive label"`
}

// sanitizeCmd issues a drive-level (non-TCG) sanitize/crypto-erase command:
// ATA SANITIZE DEVICE or NVMe Sanitize, whichever the drive speaks.
type sanitizeCmd struct {
	Device       string `flag:"" required:"" short:"d" help:"Path to SED device (e.g. /dev/nvme0)"`
	Action       string `flag:"" required:"" short:"a" enum:"status,crypto-erase,block-erase,overwrite,freeze-lock,antifreeze-lock" help:"Sanitize action to perform"`
	Pattern      uint32 `flag:"" optional:"" default:"0" help:"32-bit overwrite pattern (overwrite action only)"`
	Passes       int    `flag:"" optional:"" default:"1" help:"Overwrite pass count, 1-15 (overwrite action only)"`
	Invert       bool   `flag:"" optional:"" help:"Invert the pattern between overwrite passes"`
	NoDeallocate bool   `flag:"" optional:"" help:"Do not deallocate blocks the device cannot guarantee were overwritten"`
}

// driveInfoCmd prints the drive's identity, capacity and security-relevant
// capabilities without touching any state.
type driveInfoCmd struct {
	Device string `flag:"" required:"" short:"d" help:"Path to SED device (e.g. /dev/nvme0)"`
}

// cli is the main command line interface struct required by kong command line parser
var cli struct {
	InitialSetup  initialSetupCmd  `cmd:"" help:"Take ownership of a given device"`
	LoadPBA       loadPBAImageCmd  `cmd:"" help:"Load PBA image to shadow MBR"`
	RevertNoerase revertNoeraseCmd `cmd:"" help:""`
	RevertTper    revertTPerCmd    `cmd:"" help:""`
	RevertPSID    revertPSIDCmd    `cmd:"" help:"Factory-revert a device using its printed PSID"`
	Sanitize      sanitizeCmd      `cmd:"" help:"Issue an ATA SANITIZE DEVICE / NVMe Sanitize command"`
	DriveInfo     driveInfoCmd     `cmd:"" help:"Show drive identity, capacity and sanitize/TCG capabilities"`
}

// Run executes when the initial-setup command is invoked
func (t *initialSetupCmd) Run(ctx *context) error {
	fmt.Printf("Open device: %s", t.Device)
	coreObj, err := core.NewCore(t.Device)
	if err != nil {
		return fmt.Errorf("NewCore(%s) failed: %v", t.Device, err)
	}
	fmt.Println("Find ComID")
	comID, _, err := core.FindComID(coreObj.DriveIntf, coreObj.DiskInfo.Level0Discovery)
	if err != nil {
		return fmt.Errorf("FindComID() failed: %v", err)
	}
	fmt.Println("Create new ControlSession")
	cs, err := core.NewControlSession(coreObj.DriveIntf, coreObj.Level0Discovery, core.WithComID(comID))
	if err != nil {
		return fmt.Errorf("NewControllSession() failed: %v", err)
	}

	// Take Ownership
	fmt.Println("Create new Session")
	adminSession, err := cs.NewSession(uid.AdminSP)
	if err != nil {
		return fmt.Errorf("cs.NewSession() failed: %v", err)
	}

	//Get the MSID (only works if device hasnt been claimed)
	fmt.Println("Read MSID Pin")
	msid, err := table.Admin_C_PIN_MSID_GetPIN(adminSession)
	if err != nil {
		return fmt.Errorf("Admin_C_PIN_MSID_GetPin() failed: %v", err)
	}
	// According to TCG_Storage_Opal_SSC_Application_Note_1-00_1-00-Final.pdf, p. 10 we have to close the session
	// but this is not implemented. We use ThisSp_Authenticate to elevate the session directly.
	fmt.Println("Authenticate with MSID as SID Authority at AdminSP")
	if err := table.ThisSP_Authenticate(adminSession, uid.AuthoritySID, msid); err != nil {
		return fmt.Errorf("ThisSp_Authenticate failed: %v", err)
	}
	fmt.Println("Set new password")
	// Set the new SID password. Password needs to be hashed.
	// The used algorithm is the same as used in DriveTrustAlliance implementation of sedutil-cli
	serial, err := coreObj.SerialNumber()
	if err != nil {
		return fmt.Errorf("coreObj.SerialNumber() failed: %v", err)
	}
	pwhash := hash.HashSedutilDTA(t.Password, string(serial))

	if err := table.Admin_C_Pin_SID_SetPIN(adminSession, pwhash); err != nil {
		return fmt.Errorf("Admin_C_PIN_SID_SetPIN() failed: %v", err)
	}

	fmt.Println("Activate LockingSP")
	// Activate LockingSP
	lcs, err := table.Admin_SP_GetLifeCycleState(adminSession, uid.LockingSP)
	if err != nil {
		return fmt.Errorf("Admin_SP_GetLifeCycleState() failed: %v", err)
	}
	if lcs != table.ManufacturedInactive {
		return fmt.Errorf("LockingSP Lifecycle state of %s, but require %s", lcs.String(), table.ManufacturedInactive)
	}
	if err := table.LockingSPActivate(adminSession); err != nil {
		return fmt.Errorf("LockingSPActivate() failed: %v", err)
	}
	adminSession.Close()

	fmt.Println("Configure LockingRange0")
	// Configure LockingRange0
	// New Session to LockingSP required
	lockingSession, err := cs.NewSession(uid.LockingSP)
	if err != nil {
		return fmt.Errorf("NewSession() to LockingSP failed: %v", err)
	}
	defer lockingSession.Close()
	// Elevate the session to Admin1 with required credentials
	if err := table.ThisSP_Authenticate(lockingSession, uid.LockingAuthorityAdmin1, pwhash); err != nil {
		return fmt.Errorf("authenticating as Admin1 failed: %v", err)
	}

	if err := table.ConfigureLockingRange(lockingSession); err != nil {
		return fmt.Errorf("ConfigureLockingRange() failed: %v", err)
	}

	// SetLockingRange0
	fmt.Println("SetMBRDone on")
	// setMBRDone 1
	state := true
	mbr := &table.MBRControl{Done: &state}
	if err := table.MBRControl_Set(lockingSession, mbr); err != nil {
		return fmt.Errorf("MBRDone failed: %v", err)
	}
	fmt.Println("SetMBREnable on")
	// setMBREnable 1
	mbr = &table.MBRControl{Enable: &state}
	if err := table.MBRControl_Set(lockingSession, mbr); err != nil {
		return fmt.Errorf("MBREnable failed: %v", err)
	}

	return nil
}

func (l *loadPBAImageCmd) Run(ctx *context) error {
	img, err := os.ReadFile(l.Path)
	if err != nil {
		return fmt.Errorf("ReadFile(l.Path) failed: %v", err)
	}

	if l.Password == "" {
		return fmt.Errorf("empty password not allowed")
	}

	coreObj, err := core.NewCore(l.Device)
	if err != nil {
		return fmt.Errorf("NewCore() failed: %v", err)
	}

	comID, _, err := core.FindComID(coreObj.DriveIntf, coreObj.DiskInfo.Level0Discovery)
	if err != nil {
		return fmt.Errorf("FindComID() failed: %v", err)
	}
	cs, err := core.NewControlSession(coreObj.DriveIntf, coreObj.Level0Discovery, core.WithComID(comID))
	if err != nil {
		return fmt.Errorf("NewControllSession() failed: %v", err)
	}

	serial, err := coreObj.SerialNumber()
	if err != nil {
		return fmt.Errorf("coreObj.SerialNumber() failed: %v", err)
	}
	pwhash := hash.HashSedutilDTA(l.Password, string(serial))

	lockingSession, err := cs.NewSession(uid.LockingSP)
	if err != nil {
		return fmt.Errorf("NewSession() to LockingSP failed: %v", err)
	}
	defer lockingSession.Close()
	// Elevate the session to Admin1 with required credentials
	if err := table.ThisSP_Authenticate(lockingSession, uid.LockingAuthorityAdmin1, pwhash); err != nil {
		return fmt.Errorf("authenticating as Admin1 failed: %v", err)
	}
	if err := table.LoadPBAImage(lockingSession, img); err != nil {
		return fmt.Errorf("LoadPBAImage() failed: %v", err)
	}

	return nil
}

func (r *revertNoeraseCmd) Run(ctx *context) error {
	if r.Password == "" {
		return fmt.Errorf("empty password not allowed")
	}

	coreObj, err := core.NewCore(r.Device)
	if err != nil {
		return fmt.Errorf("NewCore() failed: %v", err)
	}

	comID, _, err := core.FindComID(coreObj.DriveIntf, coreObj.DiskInfo.Level0Discovery)
	if err != nil {
		return fmt.Errorf("FindComID() failed: %v", err)
	}
	cs, err := core.NewControlSession(coreObj.DriveIntf, coreObj.Level0Discovery, core.WithComID(comID))
	if err != nil {
		return fmt.Errorf("NewControllSession() failed: %v", err)
	}

	serial, err := coreObj.SerialNumber()
	if err != nil {
		return fmt.Errorf("coreObj.SerialNumber() failed: %v", err)
	}
	pwhash := hash.HashSedutilDTA(r.Password, string(serial))

	lockingSession, err := cs.NewSession(uid.LockingSP)
	if err != nil {
		return fmt.Errorf("NewSession() to LockingSP failed: %v", err)
	}
	defer lockingSession.Close()
	// Elevate the session to Admin1 with required credentials
	if err := table.ThisSP_Authenticate(lockingSession, uid.LockingAuthorityAdmin1, pwhash); err != nil {
		return fmt.Errorf("authenticating as Admin1 failed: %v", err)
	}

	if err := table.RevertLockingSP(lockingSession, true); err != nil {
		return fmt.Errorf("RevertLockingSP() failed: %v", err)
	}
	return nil
}

func (r *revertTPerCmd) Run(ctx *context) error {
	coreObj, err := core.NewCore(r.Device)
	if err != nil {
		return fmt.Errorf("NewCore(%s) failed: %v", r.Device, err)
	}
	comID, _, err := core.FindComID(coreObj.DriveIntf, coreObj.DiskInfo.Level0Discovery)
	if err != nil {
		return fmt.Errorf("FindComID() failed: %v", err)
	}
	cs, err := core.NewControlSession(coreObj.DriveIntf, coreObj.Level0Discovery, core.WithComID(comID))
	if err != nil {
		return fmt.Errorf("NewControllSession() failed: %v", err)
	}
	adminSession, err := cs.NewSession(uid.AdminSP)
	if err != nil {
		return fmt.Errorf("cs.NewSession() failed: %v", err)
	}
	serial, err := coreObj.SerialNumber()
	if err != nil {
		return fmt.Errorf("coreObj.SerialNumber() failed: %v", err)
	}
	pwhash := hash.HashSedutilDTA(r.Password, string(serial))

	if err := table.ThisSP_Authenticate(adminSession, uid.AuthoritySID, pwhash); err != nil {
		return fmt.Errorf("authenticating as AdminSP failed: %v", err)
	}

	if err := table.RevertTPer(adminSession); err != nil {
		return fmt.Errorf("RevertTPer() failed: %v", err)
	}
	return nil
}

// RevertUsingPSID performs a factory revert of the entire TPer using the
// drive's printed PSID. Unlike the SID path, the PSID is never hashed: it
// is sent to the drive as-is ("raw" authentication, per the Opal Feature
// Set: PSID specification).
func RevertUsingPSID(device string, psid string) error {
	coreObj, err := core.NewCore(device)
	if err != nil {
		return fmt.Errorf("NewCore(%s) failed: %v", device, err)
	}
	comID, _, err := core.FindComID(coreObj.DriveIntf, coreObj.DiskInfo.Level0Discovery)
	if err != nil {
		return fmt.Errorf("FindComID() failed: %v", err)
	}
	cs, err := core.NewControlSession(coreObj.DriveIntf, coreObj.Level0Discovery, core.WithComID(comID))
	if err != nil {
		return fmt.Errorf("NewControllSession() failed: %v", err)
	}
	// The PSID is the raw proof; it authenticates as part of StartSession
	// rather than with a separate Authenticate call.
	adminSession, err := cs.NewSession(uid.AdminSP, core.WithHostChallenge(uid.AuthorityPSID, []byte(psid)))
	if err != nil {
		return fmt.Errorf("cs.NewSession() failed: %v", err)
	}
	defer adminSession.Close()

	if err := table.RevertTPer(adminSession); err != nil {
		return fmt.Errorf("RevertTPer() failed: %v", err)
	}
	return nil
}

// Run executes when the revert-psid command is invoked
func (r *revertPSIDCmd) Run(ctx *context) error {
	return RevertUsingPSID(r.Device, r.PSID)
}

func parseSanitizeAction(s string) (drive.SanitizeAction, error) {
	switch s {
	case "status":
		return drive.SanitizeStatus, nil
	case "crypto-erase":
		return drive.SanitizeCryptoErase, nil
	case "block-erase":
		return drive.SanitizeBlockErase, nil
	case "overwrite":
		return drive.SanitizeOverwrite, nil
	case "freeze-lock":
		return drive.SanitizeFreezeLock, nil
	case "antifreeze-lock":
		return drive.SanitizeAntifreezeLock, nil
	default:
		return 0, fmt.Errorf("unknown sanitize action %q", s)
	}
}

// Run executes when the sanitize command is invoked
func (s *sanitizeCmd) Run(ctx *context) error {
	action, err := parseSanitizeAction(s.Action)
	if err != nil {
		return err
	}

	d, err := drive.Open(s.Device)
	if err != nil {
		return fmt.Errorf("drive.Open(%s) failed: %v", s.Device, err)
	}
	defer d.Close()

	progress, err := drive.Sanitize(d, action, drive.SanitizeOpts{
		OverwritePattern: s.Pattern,
		PassCount:        s.Passes,
		Invert:           s.Invert,
		NoDeallocate:     s.NoDeallocate,
	})
	if err != nil {
		return fmt.Errorf("drive.Sanitize() failed: %v", err)
	}

	fmt.Printf("succeeded=%v in-progress=%v frozen=%v failed=%v progress=%.1f%% eta=%ds\n",
		progress.Succeeded, progress.InProgress, progress.Frozen, progress.Failed,
		progress.Fraction*100, progress.ETASeconds)
	return nil
}

// Run executes when the drive-info command is invoked
func (c *driveInfoCmd) Run(ctx *context) error {
	d, err := drive.Open(c.Device)
	if err != nil {
		return fmt.Errorf("drive.Open(%s) failed: %v", c.Device, err)
	}
	defer d.Close()

	id, err := d.Identify()
	if err != nil {
		return fmt.Errorf("drive.Identify() failed: %v", err)
	}
	fmt.Printf("Device:    %s\n", c.Device)
	fmt.Printf("Protocol:  %s\n", id.Protocol)
	fmt.Printf("Model:     %s\n", id.Model)
	fmt.Printf("Serial:    %s\n", id.SerialNumber)
	fmt.Printf("Firmware:  %s\n", id.Firmware)

	if size, err := drive.Capacity(d); err == nil {
		fmt.Printf("Capacity:  %d bytes\n", size)
	}
	if sectors, err := drive.NativeMaxSectors(d); err == nil {
		fmt.Printf("Native max sectors: %d\n", sectors)
	}
	if _, err := drive.DCOIdentify(d); err == nil {
		fmt.Printf("DCO:       present\n")
	}

	if caps, err := drive.SanitizeCapabilities(d); err == nil {
		fmt.Println("Sanitize:")
		names := []struct {
			action drive.SanitizeAction
			name   string
		}{
			{drive.SanitizeCryptoErase, "crypto-erase"},
			{drive.SanitizeBlockErase, "block-erase"},
			{drive.SanitizeOverwrite, "overwrite"},
		}
		for _, n := range names {
			fmt.Printf("  %-13s %s\n", n.name+":", caps[n.action])
		}
	}

	d0, err := core.Discovery0(d)
	if err != nil {
		if err == core.ErrNotSupported {
			fmt.Println("TCG:       unsupported")
			return nil
		}
		fmt.Println("TCG:       undetermined (discovery failed)")
		return nil
	}
	ssc := "generic"
	switch {
	case d0.OpalV2 != nil:
		ssc = "Opal 2.0"
	case d0.OpalV1 != nil:
		ssc = "Opal 1.0"
	case d0.Enterprise != nil:
		ssc = "Enterprise"
	}
	fmt.Printf("TCG:       supported (%s)\n", ssc)
	if d0.Locking != nil {
		fmt.Printf("Locking:   supported=%v enabled=%v locked=%v\n",
			d0.Locking.LockingSupported, d0.Locking.LockingEnabled, d0.Locking.Locked)
	}
	return nil
}
