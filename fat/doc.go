// Package fat implements the FAT12/FAT16 volume decoder and builder: boot
// sector and MBR partition walking, FAT chain traversal, directory tree
// decoding into a file table (spec §4.4), and synthesizing a fresh bootable
// volume from a host file tree (spec §4.5).
//
// FAT32 is not implemented, nor is long filename (VFAT/LFN) support;
// filenames are restricted to 8 characters + 3 characters for the
// extension, in the classic 8.3 shape.
package fat
